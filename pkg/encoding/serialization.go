package encoding

// Serializable is a value stored as a named, self-describing byte blob.
// TypeName identifies the concrete layout so readers can reject foreign blobs.
type Serializable interface {
	TypeName() string
	Serialize() ([]byte, error)
	Deserialize([]byte) error
}
