package conf

import (
	"path/filepath"

	"github.com/juju/errors"
	"gopkg.in/ini.v1"

	"xbtree/logger"
	"xbtree/storage/page"
)

const (
	// DefaultPageCacheSize is used when page_cache_size is 0 or absent.
	DefaultPageCacheSize = 100
	// MaxPageCacheSize bounds the resident page cache.
	MaxPageCacheSize = 1000
)

/*
*
data_dir        = data
page_cache_size = 100
page_size       = 4096
*/
type Cfg struct {
	Raw *ini.File

	// engine
	DataDir       string `default:"data" yaml:"data_dir" json:"data_dir,omitempty"`
	PageCacheSize int    `default:"100" yaml:"page_cache_size" json:"page_cache_size,omitempty"`
	PageSize      int    `default:"4096" yaml:"page_size" json:"page_size,omitempty"`

	// logs
	LogError string `default:"" yaml:"log_error" json:"log_error,omitempty"`
	LogInfos string `default:"" yaml:"log_infos" json:"log_infos,omitempty"`
	LogLevel string `default:"info" yaml:"log_level" json:"log_level,omitempty"`
}

func NewCfg() *Cfg {
	return &Cfg{
		Raw:           ini.Empty(),
		DataDir:       "data",
		PageCacheSize: DefaultPageCacheSize,
		PageSize:      page.PageSize,
		LogLevel:      "info",
	}
}

// Load reads configPath and overrides the defaults with the [engine]
// and [logs] sections. An empty path leaves the defaults in place; a
// file that cannot be loaded is an error.
func (cfg *Cfg) Load(configPath string) (*Cfg, error) {
	if configPath == "" {
		return cfg, nil
	}

	iniFile, err := ini.Load(configPath)
	if err != nil {
		return nil, errors.Annotatef(err, "load config %s", configPath)
	}
	cfg.Raw = iniFile

	cfg.parseEngineCfg(cfg.Raw.Section("engine"))
	cfg.parseLogsCfg(cfg.Raw.Section("logs"))

	if err := cfg.validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return cfg, nil
}

func (cfg *Cfg) parseEngineCfg(section *ini.Section) {
	cfg.DataDir = section.Key("data_dir").MustString(cfg.DataDir)
	cfg.PageCacheSize = section.Key("page_cache_size").MustInt(cfg.PageCacheSize)
	cfg.PageSize = section.Key("page_size").MustInt(cfg.PageSize)

	if cfg.PageCacheSize <= 0 {
		logger.Warnf("page_cache_size %d is not positive, using default %d", cfg.PageCacheSize, DefaultPageCacheSize)
		cfg.PageCacheSize = DefaultPageCacheSize
	}
	if cfg.PageCacheSize > MaxPageCacheSize {
		logger.Warnf("page_cache_size %d exceeds the cap, using %d", cfg.PageCacheSize, MaxPageCacheSize)
		cfg.PageCacheSize = MaxPageCacheSize
	}
}

func (cfg *Cfg) parseLogsCfg(section *ini.Section) {
	cfg.LogError = section.Key("log_error").MustString(cfg.LogError)
	cfg.LogInfos = section.Key("log_infos").MustString(cfg.LogInfos)
	cfg.LogLevel = section.Key("log_level").MustString(cfg.LogLevel)
}

func (cfg *Cfg) validate() error {
	// page_size is declared for forward compatibility only; the
	// on-disk format is built around a single page size.
	if cfg.PageSize != page.PageSize {
		return errors.NotSupportedf("page_size %d (only %d)", cfg.PageSize, page.PageSize)
	}
	return nil
}

// IndexPath returns the backing file path for a named index.
func (cfg *Cfg) IndexPath(name string) string {
	return filepath.Join(cfg.DataDir, name+".xbt")
}
