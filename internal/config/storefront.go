package config

import (
	"errors"
	"net/mail"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Storefront holds shop identity values an operator may edit without a restart.
type Storefront struct {
	ShopName    string `mapstructure:"shopName"`
	PublicURL   string `mapstructure:"publicURL"`
	SellerEmail string `mapstructure:"sellerEmail"`
	ReplyTo     string `mapstructure:"replyTo"`
	Signature   string `mapstructure:"signature"`
}

func DefaultStorefront() Storefront {
	return Storefront{
		ShopName:    "L'Atelier",
		PublicURL:   "http://localhost:8080",
		SellerEmail: "",
		Signature:   "À très bientôt,\nL'Atelier",
	}
}

type StorefrontHolder struct {
	current atomic.Value // holds Storefront
}

// NewStorefrontHolder reads storefront.yml when present and watches it for edits.
// SELLER_EMAIL and SHOP_NAME in the environment override the file.
func NewStorefrontHolder(log *zap.Logger) (*StorefrontHolder, error) {
	v := viper.New()

	v.SetConfigName("storefront")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/atelier")
	v.AddConfigPath(".")

	defaults := DefaultStorefront()
	v.SetDefault("storefront.shopName", defaults.ShopName)
	v.SetDefault("storefront.publicURL", defaults.PublicURL)
	v.SetDefault("storefront.sellerEmail", defaults.SellerEmail)
	v.SetDefault("storefront.signature", defaults.Signature)
	_ = v.BindEnv("storefront.sellerEmail", "SELLER_EMAIL")
	_ = v.BindEnv("storefront.shopName", "SHOP_NAME")
	_ = v.BindEnv("storefront.publicURL", "PUBLIC_URL")

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileLoaded = false
	}

	cfg, err := decodeStorefront(v)
	if err != nil {
		return nil, err
	}

	holder := NewStaticStorefront(cfg)
	if !fileLoaded {
		return holder, nil
	}

	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("config.storefront")
	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodeStorefront(v)
		if err != nil {
			log.Warn("storefront config reload ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("storefront config reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

// NewStaticStorefront wraps a fixed value; used by tests and when no file exists.
func NewStaticStorefront(cfg Storefront) *StorefrontHolder {
	holder := &StorefrontHolder{}
	holder.current.Store(cfg)
	return holder
}

func (h *StorefrontHolder) Get() Storefront {
	if h == nil {
		return DefaultStorefront()
	}
	return h.current.Load().(Storefront)
}

func decodeStorefront(v *viper.Viper) (Storefront, error) {
	var cfg Storefront
	if err := v.UnmarshalKey("storefront", &cfg); err != nil {
		return Storefront{}, err
	}
	cfg.ShopName = strings.TrimSpace(cfg.ShopName)
	cfg.SellerEmail = strings.TrimSpace(cfg.SellerEmail)
	cfg.PublicURL = strings.TrimRight(strings.TrimSpace(cfg.PublicURL), "/")
	return cfg, validateStorefront(cfg)
}

func validateStorefront(cfg Storefront) error {
	if cfg.ShopName == "" {
		return errors.New("storefront.shopName cannot be empty")
	}
	if cfg.SellerEmail != "" {
		if _, err := mail.ParseAddress(cfg.SellerEmail); err != nil {
			return errors.New("storefront.sellerEmail is not a valid address")
		}
	}
	return nil
}
