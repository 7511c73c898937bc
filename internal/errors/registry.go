package errors

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category Category
	Message  string
	Detail   string
	DocURL   string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Runtime Errors (E001-E019)
	// ============================================

	"E001": {
		Category: CategoryRuntime,
		Message:  "No active registry",
		Detail:   "A store was used before any registry was created, installed or made active. Stores are always resolved against a registry.",
		DocURL:   "https://vstore.dev/docs/errors/E001",
	},
	"E002": {
		Category: CategoryRuntime,
		Message:  "Registry disposed",
		Detail:   "The registry's root scope has been stopped. Stores can no longer be built against it.",
		DocURL:   "https://vstore.dev/docs/errors/E002",
	},
	"E003": {
		Category: CategoryRuntime,
		Message:  "Reset is not supported on setup stores",
		Detail:   "Only stores defined with an options record know how to recreate their initial state.",
		DocURL:   "https://vstore.dev/docs/errors/E003",
	},
	"E004": {
		Category: CategoryRuntime,
		Message:  "Unknown action",
		Detail:   "The store has no action with this name.",
		DocURL:   "https://vstore.dev/docs/errors/E004",
	},
	"E005": {
		Category: CategoryRuntime,
		Message:  "Unknown field",
		Detail:   "The store has no state field, getter, action or property with this name.",
		DocURL:   "https://vstore.dev/docs/errors/E005",
	},
	"E006": {
		Category: CategoryRuntime,
		Message:  "Field is read-only",
		Detail:   "Getters and actions cannot be assigned. Write to the state fields a getter derives from instead.",
		DocURL:   "https://vstore.dev/docs/errors/E006",
	},
	"E007": {
		Category: CategoryRuntime,
		Message:  "State value has the wrong type",
		Detail:   "The value could not be converted to the type held by the state field.",
		DocURL:   "https://vstore.dev/docs/errors/E007",
	},
	"E008": {
		Category: CategoryRuntime,
		Message:  "Registry already installed",
		Detail:   "A registry binds to exactly one host application.",
		DocURL:   "https://vstore.dev/docs/errors/E008",
	},
	"E009": {
		Category: CategoryRuntime,
		Message:  "Unknown store",
		Detail:   "No store with this id is defined.",
		DocURL:   "https://vstore.dev/docs/errors/E009",
	},

	// ============================================
	// Hydration / Persistence Errors (E020-E029)
	// ============================================

	"E020": {
		Category: CategoryHydration,
		Message:  "Snapshot could not be decoded",
		Detail:   "The hydration payload is not a valid snapshot envelope.",
		DocURL:   "https://vstore.dev/docs/errors/E020",
	},
	"E021": {
		Category: CategoryHydration,
		Message:  "Unsupported snapshot version",
		Detail:   "The snapshot was written by a newer format version than this build understands.",
		DocURL:   "https://vstore.dev/docs/errors/E021",
	},
	"E022": {
		Category: CategoryPersistence,
		Message:  "Snapshot store closed",
		Detail:   "The snapshot backend has been closed and no longer accepts reads or writes.",
		DocURL:   "https://vstore.dev/docs/errors/E022",
	},

	// ============================================
	// Config Errors (E030-E039)
	// ============================================

	"E030": {
		Category: CategoryConfig,
		Message:  "Invalid configuration",
		Detail:   "The configuration file contains an invalid value.",
		DocURL:   "https://vstore.dev/docs/errors/E030",
	},
	"E031": {
		Category: CategoryConfig,
		Message:  "Configuration file not found",
		Detail:   "No vstore.json or vstore.yaml was found in the given directory.",
		DocURL:   "https://vstore.dev/docs/errors/E031",
	},
}

// Lookup returns the template for a code.
func Lookup(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}
