package service

import (
	"option_terminal/internal/modules/config"
	gws "option_terminal/internal/modules/gateway/service"
	"option_terminal/pkg/logger"
)

// Manager owns one Panel per catalog entry, all sharing the single gateway
// client.
type Manager struct {
	cfg    *config.Config
	client *gws.Client
	panels map[string]*Panel
	order  []string
}

func NewManager(cfg *config.Config, client *gws.Client, rec Recorder, n Notifier) *Manager {
	m := &Manager{
		cfg:    cfg,
		client: client,
		panels: map[string]*Panel{},
	}
	defaults := Inputs{
		Stake:    cfg.DefaultStake,
		Currency: cfg.DefaultCurrency,
		Duration: cfg.DefaultDuration,
		DurUnit:  cfg.DefaultDurUnit,
	}
	for _, spec := range Catalog() {
		m.panels[spec.Code] = NewPanel(spec, client, rec, n, defaults)
		m.order = append(m.order, spec.Code)
	}
	return m
}

func (m *Manager) Panel(code string) *Panel { return m.panels[code] }

func (m *Manager) Panels() []*Panel {
	out := make([]*Panel, 0, len(m.order))
	for _, code := range m.order {
		out = append(out, m.panels[code])
	}
	return out
}

// Start points every panel at the default instrument and re-arms them when
// the connection comes back after a drop.
func (m *Manager) Start() {
	// StateConnected fires exactly once per dial, before any authorize
	// phase, so re-arming here never runs twice per reconnect.
	m.client.OnStateChange(func(s gws.State) {
		if s != gws.StateConnected {
			return
		}
		for _, p := range m.Panels() {
			if p.Symbol() != "" {
				p.Rearm()
			}
		}
	})

	for _, p := range m.Panels() {
		if err := p.SelectSymbol(m.cfg.DefaultSymbol); err != nil {
			// transport may still be down at startup; rearm covers it
			logger.Info("panels: %s waiting for connection: %v", p.Spec().Code, err)
		}
	}
}
