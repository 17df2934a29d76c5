package memory

// Top-level namespaces of the store.
const (
	NamespaceCookies = "cookies"
	NamespaceCache   = "cache"
)

// Entry is a key/value pair. Keys are /-separated paths; values are raw bytes.
type Entry struct {
	Key   string
	Value []byte
}
