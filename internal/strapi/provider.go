package strapi

import (
	"sync"

	"github.com/tenacademy/onboarding-api/pkg/config"
)

// Provider hands out one shared Client per run stage. Clients are stateless,
// so a single instance per deployment is enough for the whole process.
type Provider struct {
	cfg  config.CMSConfig
	opts []Option

	mu      sync.Mutex
	clients map[string]*Client
}

// NewProvider builds a provider over the configured stages. Options are
// applied to every client it constructs.
func NewProvider(cfg config.CMSConfig, opts ...Option) *Provider {
	return &Provider{
		cfg:     cfg,
		opts:    opts,
		clients: make(map[string]*Client),
	}
}

// Get returns the client for a run stage, constructing it on first use.
// An empty stage resolves to the configured default.
func (p *Provider) Get(runStage string) (*Client, error) {
	stage, err := p.cfg.Stage(runStage)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if client, ok := p.clients[stage.APIRoot]; ok {
		return client, nil
	}
	client := NewClient(stage, p.cfg.Timeout, p.opts...)
	p.clients[stage.APIRoot] = client
	return client, nil
}
