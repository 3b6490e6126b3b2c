package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	gderrors "github.com/glassdome/overseer/internal/errors"
)

// AWSConfig configures an EC2 adapter instance. Glassdome federates into
// AWS through an OIDC-aware gateway (the identity broker exchanges a
// client-credentials token for short-lived EC2 API access) rather than
// embedding long-lived AWS access keys, so the adapter speaks plain
// OAuth2 like its Azure sibling.
type AWSConfig struct {
	Region       string
	GatewayURL   string // REST gateway fronting the EC2 API with bearer auth
	TokenURL     string
	ClientID     string
	ClientSecret string
}

// AWSClient implements Client against an EC2-compatible REST surface.
type AWSClient struct {
	cfg    AWSConfig
	source oauth2.TokenSource
	http   *http.Client
}

func NewAWSClient(cfg AWSConfig) *AWSClient {
	ccCfg := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
		Scopes:       []string{"ec2:full"},
	}
	return &AWSClient{
		cfg:    cfg,
		source: ccCfg.TokenSource(context.Background()),
		http:   &http.Client{Timeout: 30 * time.Second},
	}
}

var _ Client = (*AWSClient)(nil)

func (c *AWSClient) TestConnection(ctx context.Context) error {
	return c.doJSON(ctx, "GET", "/regions/"+c.cfg.Region+"/instances", nil, nil)
}

func (c *AWSClient) ListVMs(ctx context.Context) ([]VMInfo, error) {
	var result struct {
		Instances []struct {
			InstanceID   string `json:"instance_id"`
			Name         string `json:"name"`
			State        string `json:"state"`
			InstanceType string `json:"instance_type"`
			PrivateIP    string `json:"private_ip"`
		} `json:"instances"`
	}
	if err := c.doJSON(ctx, "GET", "/regions/"+c.cfg.Region+"/instances", nil, &result); err != nil {
		return nil, err
	}
	vms := make([]VMInfo, 0, len(result.Instances))
	for _, i := range result.Instances {
		vms = append(vms, VMInfo{ID: i.InstanceID, Name: i.Name, Status: strings.ToLower(i.State), IP: i.PrivateIP})
	}
	return vms, nil
}

func (c *AWSClient) GetVM(ctx context.Context, id string) (*VMInfo, error) {
	var i struct {
		InstanceID string `json:"instance_id"`
		Name       string `json:"name"`
		State      string `json:"state"`
		PrivateIP  string `json:"private_ip"`
	}
	path := fmt.Sprintf("/regions/%s/instances/%s", c.cfg.Region, id)
	if err := c.doJSON(ctx, "GET", path, nil, &i); err != nil {
		return nil, err
	}
	return &VMInfo{ID: i.InstanceID, Name: i.Name, Status: strings.ToLower(i.State), IP: i.PrivateIP}, nil
}

func (c *AWSClient) CreateVM(ctx context.Context, spec VMSpec) (*VMInfo, error) {
	if spec.Name == "" || spec.TemplateID == "" {
		return nil, gderrors.Validation("aws_invalid_spec", "name and template_id (AMI) are required")
	}
	body := map[string]interface{}{
		"name":          spec.Name,
		"image_id":      spec.TemplateID,
		"instance_type": awsInstanceTypeFor(spec),
		"subnet":        spec.NetworkBridge,
		"user_data":     spec.CloudInit.UserData,
	}
	var result struct {
		InstanceID string `json:"instance_id"`
	}
	path := "/regions/" + c.cfg.Region + "/instances"
	if err := c.doJSON(ctx, "POST", path, body, &result); err != nil {
		return nil, err
	}
	return c.GetVM(ctx, result.InstanceID)
}

func awsInstanceTypeFor(spec VMSpec) string {
	switch {
	case spec.CPUCores >= 8:
		return "m5.2xlarge"
	case spec.CPUCores >= 4:
		return "m5.xlarge"
	case spec.CPUCores >= 2:
		return "m5.large"
	default:
		return "t3.micro"
	}
}

func (c *AWSClient) StartVM(ctx context.Context, id string) error {
	path := fmt.Sprintf("/regions/%s/instances/%s/start", c.cfg.Region, id)
	return c.doJSON(ctx, "POST", path, nil, nil)
}

func (c *AWSClient) StopVM(ctx context.Context, id string) error {
	path := fmt.Sprintf("/regions/%s/instances/%s/stop", c.cfg.Region, id)
	return c.doJSON(ctx, "POST", path, nil, nil)
}

func (c *AWSClient) DeleteVM(ctx context.Context, id string) error {
	path := fmt.Sprintf("/regions/%s/instances/%s", c.cfg.Region, id)
	err := c.doJSON(ctx, "DELETE", path, nil, nil)
	if gderrors.Is(err, gderrors.KindNotFound) {
		return nil
	}
	return err
}

func (c *AWSClient) RenameVM(ctx context.Context, id, name string) error {
	path := fmt.Sprintf("/regions/%s/instances/%s/tags", c.cfg.Region, id)
	return c.doJSON(ctx, "PUT", path, map[string]interface{}{"Name": name}, nil)
}

func (c *AWSClient) GetVMIP(ctx context.Context, id string) (string, error) {
	vm, err := c.GetVM(ctx, id)
	if err != nil {
		return "", err
	}
	if vm.IP == "" {
		return "", gderrors.Transient("aws_no_ip", "no private IP assigned yet", nil)
	}
	return vm.IP, nil
}

func (c *AWSClient) ListHosts(ctx context.Context) ([]HostInfo, error) {
	var result struct {
		Zones []string `json:"availability_zones"`
	}
	if err := c.doJSON(ctx, "GET", "/regions/"+c.cfg.Region+"/zones", nil, &result); err != nil {
		return nil, err
	}
	hosts := make([]HostInfo, 0, len(result.Zones))
	for _, z := range result.Zones {
		hosts = append(hosts, HostInfo{ID: z, Name: z, Status: "available"})
	}
	return hosts, nil
}

func (c *AWSClient) ListNetworks(ctx context.Context) ([]NetworkInfo, error) {
	var result struct {
		Subnets []struct {
			SubnetID string `json:"subnet_id"`
			Name     string `json:"name"`
		} `json:"subnets"`
	}
	if err := c.doJSON(ctx, "GET", "/regions/"+c.cfg.Region+"/subnets", nil, &result); err != nil {
		return nil, err
	}
	nets := make([]NetworkInfo, 0, len(result.Subnets))
	for _, s := range result.Subnets {
		nets = append(nets, NetworkInfo{ID: s.SubnetID, Name: s.Name})
	}
	return nets, nil
}

func (c *AWSClient) doJSON(ctx context.Context, method, path string, body, out interface{}) error {
	token, err := c.source.Token()
	if err != nil {
		return gderrors.Auth("aws_auth", "failed to acquire federated AWS token", err)
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return gderrors.Internal("aws_marshal", "marshaling request body", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, strings.TrimSuffix(c.cfg.GatewayURL, "/")+path, reader)
	if err != nil {
		return gderrors.Internal("aws_request", "building request", err)
	}
	token.SetAuthHeader(req)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return gderrors.Transient("aws_timeout", "request timed out", ctx.Err())
		}
		return gderrors.Transient("aws_unreachable", "ec2 gateway unreachable", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if out != nil {
			return json.NewDecoder(resp.Body).Decode(out)
		}
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return gderrors.NotFound("aws_not_found", path+" not found")
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return gderrors.Auth("aws_auth", fmt.Sprintf("HTTP %d from ec2 gateway", resp.StatusCode), nil)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return gderrors.Transient("aws_server_error", fmt.Sprintf("HTTP %d from ec2 gateway", resp.StatusCode), nil)
	default:
		return gderrors.Validation("aws_bad_request", fmt.Sprintf("HTTP %d from ec2 gateway", resp.StatusCode))
	}
}
