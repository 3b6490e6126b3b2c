package platform

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	gderrors "github.com/glassdome/overseer/internal/errors"
)

// ProxmoxConfig configures a Proxmox VE adapter instance.
type ProxmoxConfig struct {
	BaseURL     string
	Username    string
	TokenID     string
	TokenSecret string
	DefaultNode string
	InsecureTLS bool
}

// ProxmoxClient implements Client against the Proxmox VE REST API.
type ProxmoxClient struct {
	baseURL     string
	username    string
	tokenID     string
	tokenSecret string
	defaultNode string
	http        *http.Client
}

// NewProxmoxClient builds a Proxmox adapter. Its internal *http.Client is
// exposed through HTTPClient only so tests can swap its Transport (e.g.
// with jarcoal/httpmock); callers should otherwise treat it as private.
func NewProxmoxClient(cfg ProxmoxConfig) *ProxmoxClient {
	node := cfg.DefaultNode
	if node == "" {
		node = "pve"
	}
	return &ProxmoxClient{
		baseURL:     strings.TrimSuffix(cfg.BaseURL, "/"),
		username:    cfg.Username,
		tokenID:     cfg.TokenID,
		tokenSecret: cfg.TokenSecret,
		defaultNode: node,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: cfg.InsecureTLS},
			},
		},
	}
}

// HTTPClient returns the adapter's http.Client, for test transport
// injection only.
func (c *ProxmoxClient) HTTPClient() *http.Client { return c.http }

var _ Client = (*ProxmoxClient)(nil)

func (c *ProxmoxClient) TestConnection(ctx context.Context) error {
	resp, err := c.do(ctx, "GET", "/api2/json/version", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return gderrors.Auth("proxmox_auth", "proxmox rejected the API token", nil)
	}
	if resp.StatusCode != http.StatusOK {
		return c.parseError(resp)
	}
	return nil
}

func (c *ProxmoxClient) ListVMs(ctx context.Context) ([]VMInfo, error) {
	path := fmt.Sprintf("/api2/json/nodes/%s/qemu", c.defaultNode)
	resp, err := c.do(ctx, "GET", path, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, c.parseError(resp)
	}

	var result struct {
		Data []struct {
			VMID   int    `json:"vmid"`
			Name   string `json:"name"`
			Status string `json:"status"`
			Maxmem int64  `json:"maxmem"`
			Maxdisk int64 `json:"maxdisk"`
			Cpus   int    `json:"cpus"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, gderrors.Internal("proxmox_decode", "decoding qemu list", err)
	}

	vms := make([]VMInfo, 0, len(result.Data))
	for _, v := range result.Data {
		vms = append(vms, VMInfo{
			ID:       strconv.Itoa(v.VMID),
			Name:     v.Name,
			Host:     c.defaultNode,
			Status:   v.Status,
			CPUCores: v.Cpus,
			MemoryMB: int(v.Maxmem / (1024 * 1024)),
			DiskGB:   int(v.Maxdisk / (1024 * 1024 * 1024)),
		})
	}
	return vms, nil
}

func (c *ProxmoxClient) GetVM(ctx context.Context, id string) (*VMInfo, error) {
	path := fmt.Sprintf("/api2/json/nodes/%s/qemu/%s/status/current", c.defaultNode, id)
	resp, err := c.do(ctx, "GET", path, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, gderrors.NotFound("proxmox_vm_not_found", "vm "+id+" not found")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, c.parseError(resp)
	}

	var result struct {
		Data struct {
			Name   string `json:"name"`
			Status string `json:"status"`
			Maxmem int64  `json:"maxmem"`
			Maxdisk int64 `json:"maxdisk"`
			Cpus   int    `json:"cpus"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, gderrors.Internal("proxmox_decode", "decoding vm status", err)
	}

	return &VMInfo{
		ID:       id,
		Name:     result.Data.Name,
		Host:     c.defaultNode,
		Status:   result.Data.Status,
		CPUCores: result.Data.Cpus,
		MemoryMB: int(result.Data.Maxmem / (1024 * 1024)),
		DiskGB:   int(result.Data.Maxdisk / (1024 * 1024 * 1024)),
	}, nil
}

func (c *ProxmoxClient) CreateVM(ctx context.Context, spec VMSpec) (*VMInfo, error) {
	if spec.Name == "" || spec.TemplateID == "" {
		return nil, gderrors.Validation("proxmox_invalid_spec", "name and template_id are required")
	}

	vmid, err := c.nextVMID(ctx)
	if err != nil {
		return nil, err
	}

	targetNode := spec.TargetHost
	if targetNode == "" {
		targetNode = c.defaultNode
	}

	clonePath := fmt.Sprintf("/api2/json/nodes/%s/qemu/%s/clone", targetNode, spec.TemplateID)
	resp, err := c.do(ctx, "POST", clonePath, map[string]interface{}{
		"newid":  vmid,
		"name":   spec.Name,
		"full":   true,
		"target": targetNode,
	})
	if err != nil {
		return nil, err
	}
	resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, gderrors.NotFound("proxmox_template_not_found", "template "+spec.TemplateID+" not found")
	}
	if resp.StatusCode >= 500 {
		return nil, gderrors.Transient("proxmox_clone_failed", "clone request failed", nil)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, c.parseError(resp)
	}

	configData := map[string]interface{}{
		"cores":  spec.CPUCores,
		"memory": spec.MemoryMB,
		"scsihw": "virtio-scsi-pci",
		"net0":   fmt.Sprintf("virtio,bridge=%s", spec.NetworkBridge),
	}
	if spec.VLAN > 0 {
		configData["net0"] = fmt.Sprintf("virtio,bridge=%s,tag=%d", spec.NetworkBridge, spec.VLAN)
	}
	configPath := fmt.Sprintf("/api2/json/nodes/%s/qemu/%d/config", targetNode, vmid)
	resp, err = c.do(ctx, "PUT", configPath, configData)
	if err != nil {
		return nil, err
	}
	resp.Body.Close()

	if err := c.setCloudInit(ctx, targetNode, vmid, spec.CloudInit); err != nil {
		return nil, err
	}

	id := strconv.Itoa(vmid)
	if err := c.StartVM(ctx, id); err != nil {
		return nil, err
	}
	return c.GetVM(ctx, id)
}

func (c *ProxmoxClient) StartVM(ctx context.Context, id string) error {
	return c.vmAction(ctx, id, "start")
}

func (c *ProxmoxClient) StopVM(ctx context.Context, id string) error {
	return c.vmAction(ctx, id, "stop")
}

// DeleteVM is idempotent: deleting an already-absent VM returns success.
func (c *ProxmoxClient) DeleteVM(ctx context.Context, id string) error {
	path := fmt.Sprintf("/api2/json/nodes/%s/qemu/%s", c.defaultNode, id)
	resp, err := c.do(ctx, "DELETE", path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode != http.StatusOK {
		return c.parseError(resp)
	}
	return nil
}

func (c *ProxmoxClient) RenameVM(ctx context.Context, id, name string) error {
	path := fmt.Sprintf("/api2/json/nodes/%s/qemu/%s/config", c.defaultNode, id)
	resp, err := c.do(ctx, "PUT", path, map[string]interface{}{"name": name})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return gderrors.NotFound("proxmox_vm_not_found", "vm "+id+" not found")
	}
	if resp.StatusCode != http.StatusOK {
		return c.parseError(resp)
	}
	return nil
}

func (c *ProxmoxClient) GetVMIP(ctx context.Context, id string) (string, error) {
	path := fmt.Sprintf("/api2/json/nodes/%s/qemu/%s/agent/network-get-interfaces", c.defaultNode, id)
	resp, err := c.do(ctx, "GET", path, nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return "", gderrors.NotFound("proxmox_vm_not_found", "vm "+id+" not found")
	}
	if resp.StatusCode != http.StatusOK {
		return "", c.parseError(resp)
	}

	var result struct {
		Data struct {
			Result []struct {
				Name        string `json:"name"`
				IPAddresses []struct {
					IPAddress     string `json:"ip-address"`
					IPAddressType string `json:"ip-address-type"`
				} `json:"ip-addresses"`
			} `json:"result"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", gderrors.Transient("proxmox_agent_unavailable", "qemu-guest-agent not responding", err)
	}
	for _, iface := range result.Data.Result {
		if iface.Name == "lo" {
			continue
		}
		for _, ip := range iface.IPAddresses {
			if ip.IPAddressType == "ipv4" {
				return ip.IPAddress, nil
			}
		}
	}
	return "", gderrors.Transient("proxmox_no_ip", "no ipv4 address reported yet", nil)
}

func (c *ProxmoxClient) ListHosts(ctx context.Context) ([]HostInfo, error) {
	resp, err := c.do(ctx, "GET", "/api2/json/nodes", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, c.parseError(resp)
	}

	var result struct {
		Data []struct {
			Node   string `json:"node"`
			Status string `json:"status"`
			Maxcpu int    `json:"maxcpu"`
			Maxmem int64  `json:"maxmem"`
			Mem    int64  `json:"mem"`
			Cpu    float64 `json:"cpu"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, gderrors.Internal("proxmox_decode", "decoding node list", err)
	}

	hosts := make([]HostInfo, 0, len(result.Data))
	for _, n := range result.Data {
		hosts = append(hosts, HostInfo{
			ID:            n.Node,
			Name:          n.Node,
			Status:        n.Status,
			CPUAvailable:  n.Maxcpu,
			MemoryAvailMB: int((n.Maxmem - n.Mem) / (1024 * 1024)),
		})
	}
	return hosts, nil
}

func (c *ProxmoxClient) ListNetworks(ctx context.Context) ([]NetworkInfo, error) {
	path := fmt.Sprintf("/api2/json/nodes/%s/network", c.defaultNode)
	resp, err := c.do(ctx, "GET", path, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, c.parseError(resp)
	}

	var result struct {
		Data []struct {
			Iface string `json:"iface"`
			Type  string `json:"type"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, gderrors.Internal("proxmox_decode", "decoding network list", err)
	}

	nets := make([]NetworkInfo, 0, len(result.Data))
	for _, n := range result.Data {
		if n.Type != "bridge" {
			continue
		}
		nets = append(nets, NetworkInfo{ID: n.Iface, Name: n.Iface, Bridge: n.Iface})
	}
	return nets, nil
}

func (c *ProxmoxClient) vmAction(ctx context.Context, id, action string) error {
	path := fmt.Sprintf("/api2/json/nodes/%s/qemu/%s/status/%s", c.defaultNode, id, action)
	resp, err := c.do(ctx, "POST", path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return gderrors.NotFound("proxmox_vm_not_found", "vm "+id+" not found")
	}
	if resp.StatusCode != http.StatusOK {
		return c.parseError(resp)
	}
	return nil
}

func (c *ProxmoxClient) setCloudInit(ctx context.Context, node string, vmid int, cfg CloudInitConfig) error {
	data := map[string]interface{}{}
	if len(cfg.SSHKeys) > 0 {
		data["sshkeys"] = strings.Join(cfg.SSHKeys, "\n")
	}
	if cfg.IPAddress != "" {
		ipcfg := "ip=" + cfg.IPAddress
		if cfg.Gateway != "" {
			ipcfg += ",gw=" + cfg.Gateway
		}
		data["ipconfig0"] = ipcfg
	}
	if len(cfg.Nameservers) > 0 {
		data["nameserver"] = strings.Join(cfg.Nameservers, " ")
	}
	if len(data) == 0 {
		return nil
	}

	path := fmt.Sprintf("/api2/json/nodes/%s/qemu/%d/config", node, vmid)
	resp, err := c.do(ctx, "PUT", path, data)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return c.parseError(resp)
	}
	return nil
}

func (c *ProxmoxClient) nextVMID(ctx context.Context) (int, error) {
	resp, err := c.do(ctx, "GET", "/api2/json/cluster/nextid", nil)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	var result struct {
		Data string `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return 0, gderrors.Internal("proxmox_decode", "decoding nextid", err)
	}
	id, err := strconv.Atoi(result.Data)
	if err != nil {
		return 0, gderrors.Internal("proxmox_decode", "parsing nextid", err)
	}
	return id, nil
}

func (c *ProxmoxClient) do(ctx context.Context, method, path string, data interface{}) (*http.Response, error) {
	var body io.Reader
	if data != nil {
		payload, err := json.Marshal(data)
		if err != nil {
			return nil, gderrors.Internal("proxmox_marshal", "marshaling request body", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, gderrors.Internal("proxmox_request", "building request", err)
	}
	req.Header.Set("Authorization", fmt.Sprintf("PVEAPIToken=%s!%s=%s", c.username, c.tokenID, c.tokenSecret))
	if data != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, gderrors.Transient("proxmox_timeout", "request timed out", ctx.Err())
		}
		return nil, gderrors.Transient("proxmox_unreachable", "proxmox API unreachable", err)
	}
	return resp, nil
}

func (c *ProxmoxClient) parseError(resp *http.Response) error {
	defer resp.Body.Close()
	var errResp struct {
		Errors map[string]interface{} `json:"errors"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&errResp)

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return gderrors.Auth("proxmox_auth", fmt.Sprintf("HTTP %d from proxmox", resp.StatusCode), nil)
	}
	if resp.StatusCode >= 500 {
		return gderrors.Transient("proxmox_server_error", fmt.Sprintf("HTTP %d from proxmox", resp.StatusCode), nil)
	}
	return gderrors.Validation("proxmox_bad_request", fmt.Sprintf("HTTP %d from proxmox", resp.StatusCode))
}
