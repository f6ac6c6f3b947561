package cache

// Cache stores the last known value per key in a file at path. Inserting a
// key again replaces the previous value; no history is kept.
type Cache[T any] interface {
	Insert(path string, key string, val T) error
	Get(path string, key string) (T, error)
	Keys(path string) ([]string, error)
	Delete(path string, keys ...string) error
}
