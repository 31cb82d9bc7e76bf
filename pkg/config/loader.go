package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/consul/api"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/consul"
	"github.com/knadh/koanf/providers/etcd"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// SourceType names where the settings document lives.
type SourceType string

const (
	SourceFile      SourceType = "file"
	SourceConsul    SourceType = "consul"
	SourceEtcd      SourceType = "etcd"
	SourceZookeeper SourceType = "zookeeper"
)

// LoaderOptions mirrors the source selection across every supported
// backend, plus an optional reactive watch for deployments that want
// config changes applied without a restart.
type LoaderOptions struct {
	Type      SourceType
	Path      string
	Endpoints []string
	Watch     bool
	OnChange  func(*Config) error
}

// Loader owns the underlying koanf instance and its active watch, if any.
type Loader struct {
	koanf   *koanf.Koanf
	options LoaderOptions
	parser  *yaml.YAML
	stop    chan struct{}
}

func NewLoader(opts LoaderOptions) (*Loader, error) {
	if opts.Type == "" {
		opts.Type = SourceFile
	}
	if opts.Path == "" {
		return nil, fmt.Errorf("config: path is required")
	}
	if len(opts.Endpoints) == 0 {
		switch opts.Type {
		case SourceConsul:
			opts.Endpoints = []string{"localhost:8500"}
		case SourceEtcd:
			opts.Endpoints = []string{"localhost:2379"}
		case SourceZookeeper:
			opts.Endpoints = []string{"localhost:2181"}
		}
	}
	return &Loader{koanf: koanf.New("."), options: opts, parser: yaml.Parser(), stop: make(chan struct{})}, nil
}

// Load reads the settings document, expands environment variable
// references, and unmarshals into Config with defaults applied.
func (l *Loader) Load() (*Config, error) {
	provider, parser, err := l.buildProvider()
	if err != nil {
		return nil, err
	}
	if err := l.koanf.Load(provider, parser); err != nil {
		return nil, fmt.Errorf("config: load from %s: %w", l.options.Type, err)
	}
	if err := l.expandEnvVars(); err != nil {
		return nil, fmt.Errorf("config: expand env vars: %w", err)
	}
	cfg, err := l.unmarshal()
	if err != nil {
		return nil, err
	}
	if l.options.Watch {
		go l.watch(provider, parser)
	}
	return cfg, nil
}

func (l *Loader) buildProvider() (koanf.Provider, koanf.Parser, error) {
	switch l.options.Type {
	case SourceFile:
		return file.Provider(l.options.Path), l.parser, nil
	case SourceConsul:
		cc := api.DefaultConfig()
		cc.Address = l.options.Endpoints[0]
		return consul.Provider(consul.Config{Cfg: cc, Key: l.options.Path}), nil, nil
	case SourceEtcd:
		return etcd.Provider(etcd.Config{
			Endpoints:   l.options.Endpoints,
			DialTimeout: 5 * time.Second,
			Key:         l.options.Path,
		}), nil, nil
	case SourceZookeeper:
		zk, err := NewZookeeperProvider(l.options.Endpoints, l.options.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("config: zookeeper provider: %w", err)
		}
		return zk, l.parser, nil
	default:
		return nil, nil, fmt.Errorf("config: unsupported source type %q", l.options.Type)
	}
}

type watcher interface {
	Watch(cb func(event any, err error)) error
}

func (l *Loader) watch(provider koanf.Provider, parser koanf.Parser) {
	w, ok := provider.(watcher)
	if !ok {
		return
	}
	w.Watch(func(_ any, err error) {
		select {
		case <-l.stop:
			return
		default:
		}
		if err != nil {
			return
		}
		if err := l.koanf.Load(provider, parser); err != nil {
			return
		}
		if err := l.expandEnvVars(); err != nil {
			return
		}
		cfg, err := l.unmarshal()
		if err != nil {
			return
		}
		if l.options.OnChange != nil {
			l.options.OnChange(cfg)
		}
	})
}

func (l *Loader) unmarshal() (*Config, error) {
	cfg := &Config{}
	if err := l.koanf.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	cfg.SetDefaults()
	return cfg, nil
}

func (l *Loader) expandEnvVars() error {
	expanded := expandEnvVarsInData(l.koanf.Raw())
	data, ok := expanded.(map[string]interface{})
	if !ok {
		return fmt.Errorf("config: unexpected type after env var expansion")
	}
	next := koanf.New(".")
	if err := next.Load(confmap.Provider(data, "."), nil); err != nil {
		return fmt.Errorf("config: reload expanded map: %w", err)
	}
	l.koanf = next
	return nil
}

func (l *Loader) Stop() { close(l.stop) }

// Load is the common-case entry point: one-shot load with no watch.
func Load(path string) (*Config, error) {
	loader, err := NewLoader(LoaderOptions{Type: SourceFile, Path: path})
	if err != nil {
		return nil, err
	}
	return loader.Load()
}

func ParseSourceType(s string) (SourceType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "file":
		return SourceFile, nil
	case "consul":
		return SourceConsul, nil
	case "etcd":
		return SourceEtcd, nil
	case "zookeeper", "zk":
		return SourceZookeeper, nil
	default:
		return "", fmt.Errorf("config: invalid source type %q", s)
	}
}
