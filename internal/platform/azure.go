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

// AzureConfig configures an Azure Resource Manager adapter instance.
// Authentication is client-credentials OAuth2 against Azure AD; token
// acquisition and refresh are handled by golang.org/x/oauth2.
type AzureConfig struct {
	TenantID       string
	ClientID       string
	ClientSecret   string
	SubscriptionID string
	ResourceGroup  string
	APIVersion     string // defaults to "2023-07-01"
}

// AzureClient implements Client against the Azure Resource Manager
// Microsoft.Compute REST surface.
type AzureClient struct {
	cfg    AzureConfig
	source oauth2.TokenSource
	http   *http.Client
}

func NewAzureClient(cfg AzureConfig) *AzureClient {
	if cfg.APIVersion == "" {
		cfg.APIVersion = "2023-07-01"
	}
	ccCfg := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", cfg.TenantID),
		Scopes:       []string{"https://management.azure.com/.default"},
	}
	return &AzureClient{
		cfg:    cfg,
		source: ccCfg.TokenSource(context.Background()),
		http:   &http.Client{Timeout: 30 * time.Second},
	}
}

var _ Client = (*AzureClient)(nil)

func (c *AzureClient) baseURL() string {
	return fmt.Sprintf("https://management.azure.com/subscriptions/%s/resourceGroups/%s/providers/Microsoft.Compute",
		c.cfg.SubscriptionID, c.cfg.ResourceGroup)
}

func (c *AzureClient) TestConnection(ctx context.Context) error {
	_, err := c.source.Token()
	if err != nil {
		return gderrors.Auth("azure_auth", "failed to acquire Azure AD token", err)
	}
	return c.doJSON(ctx, "GET", c.baseURL()+"/virtualMachines?api-version="+c.cfg.APIVersion, nil, nil)
}

func (c *AzureClient) ListVMs(ctx context.Context) ([]VMInfo, error) {
	var result struct {
		Value []struct {
			Name       string `json:"name"`
			Properties struct {
				HardwareProfile struct {
					VMSize string `json:"vmSize"`
				} `json:"hardwareProfile"`
				ProvisioningState string `json:"provisioningState"`
			} `json:"properties"`
		} `json:"value"`
	}
	if err := c.doJSON(ctx, "GET", c.baseURL()+"/virtualMachines?api-version="+c.cfg.APIVersion, nil, &result); err != nil {
		return nil, err
	}
	vms := make([]VMInfo, 0, len(result.Value))
	for _, v := range result.Value {
		vms = append(vms, VMInfo{ID: v.Name, Name: v.Name, Status: strings.ToLower(v.Properties.ProvisioningState)})
	}
	return vms, nil
}

func (c *AzureClient) GetVM(ctx context.Context, id string) (*VMInfo, error) {
	var result struct {
		Name       string `json:"name"`
		Properties struct {
			ProvisioningState string `json:"provisioningState"`
			HardwareProfile   struct {
				VMSize string `json:"vmSize"`
			} `json:"hardwareProfile"`
		} `json:"properties"`
	}
	path := fmt.Sprintf("%s/virtualMachines/%s?api-version=%s", c.baseURL(), id, c.cfg.APIVersion)
	if err := c.doJSON(ctx, "GET", path, nil, &result); err != nil {
		return nil, err
	}
	return &VMInfo{ID: id, Name: result.Name, Status: strings.ToLower(result.Properties.ProvisioningState)}, nil
}

func (c *AzureClient) CreateVM(ctx context.Context, spec VMSpec) (*VMInfo, error) {
	if spec.Name == "" {
		return nil, gderrors.Validation("azure_invalid_spec", "name is required")
	}
	body := map[string]interface{}{
		"location": spec.TargetHost,
		"properties": map[string]interface{}{
			"hardwareProfile": map[string]interface{}{"vmSize": azureSizeFor(spec)},
			"storageProfile": map[string]interface{}{
				"imageReference": map[string]interface{}{"id": spec.TemplateID},
			},
		},
	}
	path := fmt.Sprintf("%s/virtualMachines/%s?api-version=%s", c.baseURL(), spec.Name, c.cfg.APIVersion)
	if err := c.doJSON(ctx, "PUT", path, body, nil); err != nil {
		return nil, err
	}
	return c.GetVM(ctx, spec.Name)
}

func azureSizeFor(spec VMSpec) string {
	switch {
	case spec.CPUCores >= 8:
		return "Standard_D8s_v5"
	case spec.CPUCores >= 4:
		return "Standard_D4s_v5"
	case spec.CPUCores >= 2:
		return "Standard_D2s_v5"
	default:
		return "Standard_B1s"
	}
}

func (c *AzureClient) StartVM(ctx context.Context, id string) error {
	path := fmt.Sprintf("%s/virtualMachines/%s/start?api-version=%s", c.baseURL(), id, c.cfg.APIVersion)
	return c.doJSON(ctx, "POST", path, nil, nil)
}

func (c *AzureClient) StopVM(ctx context.Context, id string) error {
	path := fmt.Sprintf("%s/virtualMachines/%s/deallocate?api-version=%s", c.baseURL(), id, c.cfg.APIVersion)
	return c.doJSON(ctx, "POST", path, nil, nil)
}

func (c *AzureClient) DeleteVM(ctx context.Context, id string) error {
	path := fmt.Sprintf("%s/virtualMachines/%s?api-version=%s", c.baseURL(), id, c.cfg.APIVersion)
	err := c.doJSON(ctx, "DELETE", path, nil, nil)
	if gderrors.Is(err, gderrors.KindNotFound) {
		return nil
	}
	return err
}

func (c *AzureClient) RenameVM(ctx context.Context, id, name string) error {
	// Azure VM names are immutable post-creation; Glassdome tracks the
	// friendly name as a tag instead.
	path := fmt.Sprintf("%s/virtualMachines/%s?api-version=%s", c.baseURL(), id, c.cfg.APIVersion)
	return c.doJSON(ctx, "PATCH", path, map[string]interface{}{
		"tags": map[string]string{"glassdome-display-name": name},
	}, nil)
}

func (c *AzureClient) GetVMIP(ctx context.Context, id string) (string, error) {
	var vm struct {
		Properties struct {
			NetworkProfile struct {
				NetworkInterfaces []struct {
					ID string `json:"id"`
				} `json:"networkInterfaces"`
			} `json:"networkProfile"`
		} `json:"properties"`
	}
	path := fmt.Sprintf("%s/virtualMachines/%s?api-version=%s", c.baseURL(), id, c.cfg.APIVersion)
	if err := c.doJSON(ctx, "GET", path, nil, &vm); err != nil {
		return "", err
	}
	if len(vm.Properties.NetworkProfile.NetworkInterfaces) == 0 {
		return "", gderrors.Transient("azure_no_nic", "no network interface attached yet", nil)
	}

	var nic struct {
		Properties struct {
			IPConfigurations []struct {
				Properties struct {
					PrivateIPAddress string `json:"privateIPAddress"`
				} `json:"properties"`
			} `json:"ipConfigurations"`
		} `json:"properties"`
	}
	nicURL := "https://management.azure.com" + vm.Properties.NetworkProfile.NetworkInterfaces[0].ID + "?api-version=2023-09-01"
	if err := c.doJSON(ctx, "GET", nicURL, nil, &nic); err != nil {
		return "", err
	}
	if len(nic.Properties.IPConfigurations) == 0 || nic.Properties.IPConfigurations[0].Properties.PrivateIPAddress == "" {
		return "", gderrors.Transient("azure_no_ip", "no private IP assigned yet", nil)
	}
	return nic.Properties.IPConfigurations[0].Properties.PrivateIPAddress, nil
}

func (c *AzureClient) ListHosts(ctx context.Context) ([]HostInfo, error) {
	// Azure has no concept of a fixed hypervisor host visible to tenants;
	// Glassdome models the configured region as a single logical host.
	return []HostInfo{{ID: c.cfg.ResourceGroup, Name: c.cfg.ResourceGroup, Status: "available"}}, nil
}

func (c *AzureClient) ListNetworks(ctx context.Context) ([]NetworkInfo, error) {
	var result struct {
		Value []struct {
			Name string `json:"name"`
		} `json:"value"`
	}
	path := fmt.Sprintf("https://management.azure.com/subscriptions/%s/resourceGroups/%s/providers/Microsoft.Network/virtualNetworks?api-version=2023-09-01",
		c.cfg.SubscriptionID, c.cfg.ResourceGroup)
	if err := c.doJSON(ctx, "GET", path, nil, &result); err != nil {
		return nil, err
	}
	nets := make([]NetworkInfo, 0, len(result.Value))
	for _, n := range result.Value {
		nets = append(nets, NetworkInfo{ID: n.Name, Name: n.Name})
	}
	return nets, nil
}

func (c *AzureClient) doJSON(ctx context.Context, method, url string, body, out interface{}) error {
	token, err := c.source.Token()
	if err != nil {
		return gderrors.Auth("azure_auth", "failed to acquire Azure AD token", err)
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return gderrors.Internal("azure_marshal", "marshaling request body", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return gderrors.Internal("azure_request", "building request", err)
	}
	token.SetAuthHeader(req)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return gderrors.Transient("azure_timeout", "request timed out", ctx.Err())
		}
		return gderrors.Transient("azure_unreachable", "azure resource manager unreachable", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if out != nil {
			return json.NewDecoder(resp.Body).Decode(out)
		}
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return gderrors.NotFound("azure_not_found", url+" not found")
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return gderrors.Auth("azure_auth", fmt.Sprintf("HTTP %d from azure", resp.StatusCode), nil)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return gderrors.Transient("azure_server_error", fmt.Sprintf("HTTP %d from azure", resp.StatusCode), nil)
	default:
		return gderrors.Validation("azure_bad_request", fmt.Sprintf("HTTP %d from azure", resp.StatusCode))
	}
}
