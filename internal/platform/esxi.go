package platform

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	gderrors "github.com/glassdome/overseer/internal/errors"
)

// ESXiConfig configures a vCenter/ESXi REST adapter instance.
type ESXiConfig struct {
	BaseURL     string
	Username    string
	Password    string
	InsecureTLS bool
}

// ESXiClient implements Client against the vSphere REST API
// (govc-equivalent endpoints under /rest/vcenter/...). Session tokens
// are acquired lazily; a 401 drops the cached token (and is returned as
// an AuthError), so the next call acquires a new one.
type ESXiClient struct {
	baseURL  string
	username string
	password string
	http     *http.Client

	mu      sync.Mutex
	session string
}

func NewESXiClient(cfg ESXiConfig) *ESXiClient {
	return &ESXiClient{
		baseURL:  strings.TrimSuffix(cfg.BaseURL, "/"),
		username: cfg.Username,
		password: cfg.Password,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: cfg.InsecureTLS},
			},
		},
	}
}

func (c *ESXiClient) HTTPClient() *http.Client { return c.http }

var _ Client = (*ESXiClient)(nil)

func (c *ESXiClient) login(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/rest/com/vmware/cis/session", nil)
	if err != nil {
		return gderrors.Internal("esxi_request", "building session request", err)
	}
	req.SetBasicAuth(c.username, c.password)
	resp, err := c.http.Do(req)
	if err != nil {
		return gderrors.Transient("esxi_unreachable", "vcenter API unreachable", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized {
		return gderrors.Auth("esxi_auth", "vcenter rejected credentials", nil)
	}
	if resp.StatusCode != http.StatusOK {
		return gderrors.Transient("esxi_login_failed", fmt.Sprintf("HTTP %d from vcenter session", resp.StatusCode), nil)
	}
	var result struct {
		Value string `json:"value"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return gderrors.Internal("esxi_decode", "decoding session token", err)
	}
	c.mu.Lock()
	c.session = result.Value
	c.mu.Unlock()
	return nil
}

func (c *ESXiClient) TestConnection(ctx context.Context) error {
	return c.login(ctx)
}

func (c *ESXiClient) ListVMs(ctx context.Context) ([]VMInfo, error) {
	var result struct {
		Value []struct {
			VM     string `json:"vm"`
			Name   string `json:"name"`
			Status string `json:"power_state"`
			Cpu    int    `json:"cpu_count"`
			Memory int    `json:"memory_size_MiB"`
		} `json:"value"`
	}
	if err := c.doJSON(ctx, "GET", "/rest/vcenter/vm", nil, &result); err != nil {
		return nil, err
	}
	vms := make([]VMInfo, 0, len(result.Value))
	for _, v := range result.Value {
		vms = append(vms, VMInfo{
			ID: v.VM, Name: v.Name, Status: strings.ToLower(v.Status),
			CPUCores: v.Cpu, MemoryMB: v.Memory,
		})
	}
	return vms, nil
}

func (c *ESXiClient) GetVM(ctx context.Context, id string) (*VMInfo, error) {
	var result struct {
		Value struct {
			Name   string `json:"name"`
			Status string `json:"power_state"`
			Cpu    struct {
				Count int `json:"count"`
			} `json:"cpu"`
			Memory struct {
				SizeMiB int `json:"size_MiB"`
			} `json:"memory"`
		} `json:"value"`
	}
	if err := c.doJSON(ctx, "GET", "/rest/vcenter/vm/"+id, nil, &result); err != nil {
		return nil, err
	}
	return &VMInfo{
		ID: id, Name: result.Value.Name, Status: strings.ToLower(result.Value.Status),
		CPUCores: result.Value.Cpu.Count, MemoryMB: result.Value.Memory.SizeMiB,
	}, nil
}

func (c *ESXiClient) CreateVM(ctx context.Context, spec VMSpec) (*VMInfo, error) {
	if spec.Name == "" || spec.TemplateID == "" {
		return nil, gderrors.Validation("esxi_invalid_spec", "name and template_id are required")
	}
	var result struct {
		Value string `json:"value"`
	}
	body := map[string]interface{}{
		"name":     spec.Name,
		"source":   spec.TemplateID,
		"placement": map[string]interface{}{"host": spec.TargetHost},
		"hardware_customization": map[string]interface{}{
			"cpu_update": map[string]interface{}{"num_cpus": spec.CPUCores},
			"memory_update": map[string]interface{}{"memory": spec.MemoryMB},
		},
	}
	if err := c.doJSON(ctx, "POST", "/rest/vcenter/vm-template/library-items/"+spec.TemplateID+"/deploy", body, &result); err != nil {
		return nil, err
	}
	if err := c.StartVM(ctx, result.Value); err != nil {
		return nil, err
	}
	return c.GetVM(ctx, result.Value)
}

func (c *ESXiClient) StartVM(ctx context.Context, id string) error {
	return c.powerAction(ctx, id, "start")
}

func (c *ESXiClient) StopVM(ctx context.Context, id string) error {
	return c.powerAction(ctx, id, "stop")
}

func (c *ESXiClient) DeleteVM(ctx context.Context, id string) error {
	err := c.doJSON(ctx, "DELETE", "/rest/vcenter/vm/"+id, nil, nil)
	if gderrors.Is(err, gderrors.KindNotFound) {
		return nil
	}
	return err
}

func (c *ESXiClient) RenameVM(ctx context.Context, id, name string) error {
	return c.doJSON(ctx, "PATCH", "/rest/vcenter/vm/"+id, map[string]interface{}{"name": name}, nil)
}

func (c *ESXiClient) GetVMIP(ctx context.Context, id string) (string, error) {
	var result struct {
		Value struct {
			IP string `json:"ip_address"`
		} `json:"value"`
	}
	if err := c.doJSON(ctx, "GET", "/rest/vcenter/vm/"+id+"/guest/identity", nil, &result); err != nil {
		return "", err
	}
	if result.Value.IP == "" {
		return "", gderrors.Transient("esxi_no_ip", "guest tools have not reported an address yet", nil)
	}
	return result.Value.IP, nil
}

func (c *ESXiClient) ListHosts(ctx context.Context) ([]HostInfo, error) {
	var result struct {
		Value []struct {
			Host          string `json:"host"`
			Name          string `json:"name"`
			ConnectionState string `json:"connection_state"`
		} `json:"value"`
	}
	if err := c.doJSON(ctx, "GET", "/rest/vcenter/host", nil, &result); err != nil {
		return nil, err
	}
	hosts := make([]HostInfo, 0, len(result.Value))
	for _, h := range result.Value {
		hosts = append(hosts, HostInfo{ID: h.Host, Name: h.Name, Status: strings.ToLower(h.ConnectionState)})
	}
	return hosts, nil
}

func (c *ESXiClient) ListNetworks(ctx context.Context) ([]NetworkInfo, error) {
	var result struct {
		Value []struct {
			Network string `json:"network"`
			Name    string `json:"name"`
		} `json:"value"`
	}
	if err := c.doJSON(ctx, "GET", "/rest/vcenter/network", nil, &result); err != nil {
		return nil, err
	}
	nets := make([]NetworkInfo, 0, len(result.Value))
	for _, n := range result.Value {
		nets = append(nets, NetworkInfo{ID: n.Network, Name: n.Name})
	}
	return nets, nil
}

func (c *ESXiClient) powerAction(ctx context.Context, id, action string) error {
	return c.doJSON(ctx, "POST", "/rest/vcenter/vm/"+id+"/power/"+action, nil, nil)
}

func (c *ESXiClient) doJSON(ctx context.Context, method, path string, body, out interface{}) error {
	c.mu.Lock()
	session := c.session
	c.mu.Unlock()
	if session == "" {
		if err := c.login(ctx); err != nil {
			return err
		}
		c.mu.Lock()
		session = c.session
		c.mu.Unlock()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return gderrors.Internal("esxi_marshal", "marshaling request body", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return gderrors.Internal("esxi_request", "building request", err)
	}
	req.Header.Set("vmware-api-session-id", session)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return gderrors.Transient("esxi_timeout", "request timed out", ctx.Err())
		}
		return gderrors.Transient("esxi_unreachable", "vcenter API unreachable", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		if out != nil {
			return json.NewDecoder(resp.Body).Decode(out)
		}
		return nil
	case http.StatusNotFound:
		return gderrors.NotFound("esxi_not_found", path+" not found")
	case http.StatusUnauthorized:
		c.mu.Lock()
		if c.session == session {
			c.session = ""
		}
		c.mu.Unlock()
		return gderrors.Auth("esxi_auth", "vcenter session expired", nil)
	default:
		if resp.StatusCode >= 500 {
			return gderrors.Transient("esxi_server_error", fmt.Sprintf("HTTP %d from vcenter", resp.StatusCode), nil)
		}
		return gderrors.Validation("esxi_bad_request", fmt.Sprintf("HTTP %d from vcenter", resp.StatusCode))
	}
}
