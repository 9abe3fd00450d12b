package errors

// Registered codes.
const (
	CodeLoaderPanic    = "E101"
	CodeNilStream      = "E102"
	CodeRequestsFailed = "E103"

	CodeConfigInvalid    = "E201"
	CodeConfigUnreadable = "E202"

	CodeUnknownResource = "E301"
	CodeRequestRejected = "E302"
)

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category Category
	Message  string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Resource Errors (E101-E199)
	// ============================================

	CodeLoaderPanic: {
		Category: CategoryResource,
		Message:  "Loader panicked",
	},
	CodeNilStream: {
		Category: CategoryResource,
		Message:  "Loader returned a nil stream",
	},
	CodeRequestsFailed: {
		Category: CategoryResource,
		Message:  "Request stream failed",
	},

	// ============================================
	// Config Errors (E201-E299)
	// ============================================

	CodeConfigInvalid: {
		Category: CategoryConfig,
		Message:  "Invalid configuration",
	},
	CodeConfigUnreadable: {
		Category: CategoryConfig,
		Message:  "Configuration file unreadable",
	},

	// ============================================
	// Server Errors (E301-E399)
	// ============================================

	CodeUnknownResource: {
		Category: CategoryServer,
		Message:  "Unknown resource",
	},
	CodeRequestRejected: {
		Category: CategoryServer,
		Message:  "Request rejected",
	},
}

// Lookup returns the template registered for code.
func Lookup(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}

// Codes returns every registered code.
func Codes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	return codes
}
