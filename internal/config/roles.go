package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	RoleAdmin  = "admin"
	RoleEditor = "editor"
	RoleMember = "member"
)

// RoleOption is one assignable capacity together with its display label.
type RoleOption struct {
	Value string `mapstructure:"value" json:"value"`
	Text  string `mapstructure:"text" json:"text"`
}

func DefaultRoles() []RoleOption {
	return []RoleOption{
		{Value: RoleAdmin, Text: "Admin"},
		{Value: RoleEditor, Text: "Editor"},
		{Value: RoleMember, Text: "Member"},
	}
}

// RoleCatalogHolder keeps the closed set of membership roles, reloading it
// when roles.yml changes on disk.
type RoleCatalogHolder struct {
	current atomic.Value // holds []RoleOption
}

func NewRoleCatalogHolder(log *zap.Logger) (*RoleCatalogHolder, error) {
	v := viper.New()

	v.SetConfigName("roles")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/memberrequest")
	v.AddConfigPath(".")

	v.SetEnvPrefix("MEMBERREQUEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return newRoleCatalogHolder(v, log)
}

// NewRoleCatalogHolderFromFile loads the catalog from an explicit path.
func NewRoleCatalogHolderFromFile(path string, log *zap.Logger) (*RoleCatalogHolder, error) {
	v := viper.New()
	v.SetConfigFile(path)
	return newRoleCatalogHolder(v, log)
}

func newRoleCatalogHolder(v *viper.Viper, log *zap.Logger) (*RoleCatalogHolder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("config.roles")

	holder := &RoleCatalogHolder{}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		holder.current.Store(DefaultRoles())
		return holder, nil
	}

	var roles []RoleOption
	if err := v.UnmarshalKey("roles", &roles); err != nil {
		return nil, err
	}
	if err := validateRoles(roles); err != nil {
		return nil, err
	}
	holder.current.Store(roles)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated []RoleOption
		if err := v.UnmarshalKey("roles", &updated); err != nil {
			log.Warn("role catalog reload failed", zap.String("file", e.Name), zap.Error(err))
			return
		}
		if err := validateRoles(updated); err != nil {
			log.Warn("invalid role catalog ignored", zap.String("file", e.Name), zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("role catalog reloaded", zap.String("file", e.Name), zap.Int("roles", len(updated)))
	})

	return holder, nil
}

// Roles returns a copy of the current catalog in configured order.
func (h *RoleCatalogHolder) Roles() []RoleOption {
	roles := h.current.Load().([]RoleOption)
	out := make([]RoleOption, len(roles))
	copy(out, roles)
	return out
}

func validateRoles(roles []RoleOption) error {
	if len(roles) == 0 {
		return errors.New("roles cannot be empty")
	}
	seen := make(map[string]struct{}, len(roles))
	for i, role := range roles {
		value := strings.TrimSpace(role.Value)
		if value == "" {
			return fmt.Errorf("roles[%d]: value is required", i)
		}
		if _, ok := seen[value]; ok {
			return fmt.Errorf("roles[%d]: duplicate value %q", i, value)
		}
		seen[value] = struct{}{}
	}
	if _, ok := seen[RoleAdmin]; !ok {
		return fmt.Errorf("roles must include %q", RoleAdmin)
	}
	return nil
}
