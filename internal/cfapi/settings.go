package cfapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
)

// settingRoute describes how one setting key maps onto the API. Most keys
// use the generic /settings/{key} resource; a few zone features live on
// dedicated endpoints with their own verbs and payload shapes.
type settingRoute struct {
	path   string
	method string
	read   func(result json.RawMessage) (string, error)
	body   func(value string) any
}

// Dedicated-endpoint settings. Everything else goes through /settings/.
const (
	SettingDNSSEC       = "dnssec"
	SettingPageShield   = "page_shield"
	SettingBotFightMode = "bot_fight_mode"
)

func routeFor(key string) settingRoute {
	switch key {
	case SettingDNSSEC:
		return settingRoute{
			path:   "/dnssec",
			method: http.MethodPatch,
			read: func(result json.RawMessage) (string, error) {
				var v struct {
					Status string `json:"status"`
				}
				if err := json.Unmarshal(result, &v); err != nil {
					return "", fmt.Errorf("parse dnssec result: %w", err)
				}
				return v.Status, nil
			},
			body: func(value string) any {
				return map[string]any{"status": value}
			},
		}
	case SettingPageShield:
		return settingRoute{
			path:   "/page_shield",
			method: http.MethodPut,
			read: func(result json.RawMessage) (string, error) {
				var v struct {
					Enabled bool `json:"enabled"`
				}
				if err := json.Unmarshal(result, &v); err != nil {
					return "", fmt.Errorf("parse page_shield result: %w", err)
				}
				return onOff(v.Enabled), nil
			},
			body: func(value string) any {
				return map[string]any{
					"enabled":                           value == "on",
					"use_cloudflare_reporting_endpoint": true,
					"use_connection_url_path":           true,
				}
			},
		}
	case SettingBotFightMode:
		return settingRoute{
			path:   "/bot_management",
			method: http.MethodPut,
			read: func(result json.RawMessage) (string, error) {
				var v struct {
					FightMode bool `json:"fight_mode"`
				}
				if err := json.Unmarshal(result, &v); err != nil {
					return "", fmt.Errorf("parse bot_management result: %w", err)
				}
				return onOff(v.FightMode), nil
			},
			body: func(value string) any {
				return map[string]any{"fight_mode": value == "on"}
			},
		}
	default:
		return settingRoute{
			path:   "/settings/" + key,
			method: http.MethodPatch,
			read: func(result json.RawMessage) (string, error) {
				var v struct {
					Value any `json:"value"`
				}
				if err := json.Unmarshal(result, &v); err != nil {
					return "", fmt.Errorf("parse setting result: %w", err)
				}
				return normalizeScalar(v.Value), nil
			},
			body: func(value string) any {
				return map[string]any{"value": value}
			},
		}
	}
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

// normalizeScalar renders a JSON scalar the way catalog values are written,
// so current and desired values compare as plain strings.
func normalizeScalar(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return onOff(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}
