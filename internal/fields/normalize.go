// Package fields translates the gateway's public request field names into the
// names Cryptlex expects.
package fields

import (
	"fmt"
	"maps"
	"slices"
)

// ProductID is the upstream name of the product identifier.
const ProductID = "productId"

// renames maps public snake_case names to upstream camelCase names. Keys not
// listed here are forwarded unchanged.
var renames = map[string]string{
	"product_id":                    ProductID,
	"license_template_id":           "licenseTemplateId",
	"allowed_activations":           "allowedActivations",
	"allowed_deactivations":         "allowedDeactivations",
	"allowed_floating_clients":      "allowedFloatingClients",
	"allow_vm_activation":           "allowVmActivation",
	"allow_container_activation":    "allowContainerActivation",
	"user_locked":                   "userLocked",
	"expiration_strategy":           "expirationStrategy",
	"fingerprint_matching_strategy": "fingerprintMatchingStrategy",
	"server_sync_interval":          "serverSyncInterval",
	"lease_duration":                "leaseDuration",
	"lease_strategy":                "leaseStrategy",
	"max_overages":                  "maxOverages",
	"user_id":                       "userId",
	"organization_id":               "organizationId",
	"reseller_id":                   "resellerId",
	"license_id":                    "licenseId",
	"offline_request":               "offlineRequest",
	"response_validity":             "responseValidity",
	"account_id":                    "accountId",
}

// publicNames is the reverse of renames, used to name fields in client errors.
var publicNames = map[string]string{}

func init() {
	for from, to := range renames {
		if _, ok := renames[to]; ok {
			panic(fmt.Sprintf("fields: rename target %q is also a source", to))
		}
		if prev, ok := publicNames[to]; ok {
			panic(fmt.Sprintf("fields: %q and %q both rename to %q", prev, from, to))
		}
		publicNames[to] = from
	}
}

// Normalize returns a copy of raw with public names folded onto upstream
// names. When both forms of a field are present the public (renamed) value
// wins. Normalizing an already-normalized map returns an equal map.
func Normalize(raw map[string]any) map[string]any {
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		if _, ok := renames[k]; !ok {
			out[k] = v
		}
	}
	for k, v := range raw {
		if to, ok := renames[k]; ok {
			out[to] = v
		}
	}
	return out
}

// PublicName returns the name clients use for an upstream field.
func PublicName(upstream string) string {
	if n, ok := publicNames[upstream]; ok {
		return n
	}
	return upstream
}

// Take removes key from m and returns its value.
func Take(m map[string]any, key string) (any, bool) {
	v, ok := m[key]
	if ok {
		delete(m, key)
	}
	return v, ok
}

// WithDefaults returns fields layered over defaults; values in fields win.
func WithDefaults(fields, defaults map[string]any) map[string]any {
	out := maps.Clone(defaults)
	if out == nil {
		out = make(map[string]any, len(fields))
	}
	maps.Copy(out, fields)
	return out
}

// Sorted returns the keys of m in order, for stable log output.
func Sorted(m map[string]any) []string {
	return slices.Sorted(maps.Keys(m))
}
