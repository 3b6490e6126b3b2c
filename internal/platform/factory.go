package platform

import (
	"github.com/glassdome/overseer/internal/config"
	gderrors "github.com/glassdome/overseer/internal/errors"
)

// Name identifies a platform kind, used both as a config key and as the
// "platform" segment of every registry.PlatformIdentity built from this
// adapter's results.
type Name string

const (
	Proxmox Name = "proxmox"
	ESXi    Name = "esxi"
	AWS     Name = "aws"
	Azure   Name = "azure"
)

// Factory builds the configured, enabled set of platform clients once at
// startup. Construction never dials out; TestConnection is the caller's
// opportunity to verify reachability.
type Factory struct {
	clients map[Name]Client
}

// NewFactory builds a Client for every platform named in cfg.Enabled.
// An unknown platform name is a configuration error the caller should
// fail fast on.
func NewFactory(cfg config.PlatformsConfig) (*Factory, error) {
	f := &Factory{clients: make(map[Name]Client, len(cfg.Enabled))}
	for _, name := range cfg.Enabled {
		switch Name(name) {
		case Proxmox:
			f.clients[Proxmox] = NewProxmoxClient(ProxmoxConfig{
				BaseURL:     cfg.Proxmox.BaseURL,
				Username:    cfg.Proxmox.Username,
				TokenID:     cfg.Proxmox.TokenID,
				TokenSecret: cfg.Proxmox.TokenSecret,
				DefaultNode: cfg.Proxmox.DefaultNode,
				InsecureTLS: cfg.Proxmox.InsecureTLS,
			})
		case ESXi:
			f.clients[ESXi] = NewESXiClient(ESXiConfig{
				BaseURL:     cfg.ESXi.BaseURL,
				Username:    cfg.ESXi.Username,
				Password:    cfg.ESXi.Password,
				InsecureTLS: cfg.ESXi.InsecureTLS,
			})
		case AWS:
			f.clients[AWS] = NewAWSClient(AWSConfig{
				Region:       cfg.AWS.Region,
				GatewayURL:   cfg.AWS.GatewayURL,
				TokenURL:     cfg.AWS.TokenURL,
				ClientID:     cfg.AWS.ClientID,
				ClientSecret: cfg.AWS.ClientSecret,
			})
		case Azure:
			f.clients[Azure] = NewAzureClient(AzureConfig{
				TenantID:       cfg.Azure.TenantID,
				ClientID:       cfg.Azure.ClientID,
				ClientSecret:   cfg.Azure.ClientSecret,
				SubscriptionID: cfg.Azure.SubscriptionID,
				ResourceGroup:  cfg.Azure.ResourceGroup,
			})
		default:
			return nil, gderrors.Validation("unknown_platform", "platforms.enabled names an unsupported platform: "+name)
		}
	}
	return f, nil
}

// NewFactoryWithClients builds a Factory directly from a pre-built
// client map, bypassing config-driven construction. Used by tests and
// by callers wiring in a fake/mock Client for one platform.
func NewFactoryWithClients(clients map[Name]Client) *Factory {
	return &Factory{clients: clients}
}

// Get returns the client for name, or an error if it isn't enabled.
func (f *Factory) Get(name Name) (Client, error) {
	c, ok := f.clients[name]
	if !ok {
		return nil, gderrors.Validation("platform_not_enabled", string(name)+" is not in platforms.enabled")
	}
	return c, nil
}

// Enabled returns the names of every platform this factory can serve.
func (f *Factory) Enabled() []Name {
	names := make([]Name, 0, len(f.clients))
	for n := range f.clients {
		names = append(names, n)
	}
	return names
}
