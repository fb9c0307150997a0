package domain

// ModelIdentity names the embedding model that produced a vector.
// Vectors from different identities are never comparable.
type ModelIdentity string

// NewModelIdentity joins a provider and model name into an identity.
func NewModelIdentity(provider AIProvider, model string) ModelIdentity {
	return ModelIdentity(string(provider) + "/" + model)
}

// String returns the string representation.
func (m ModelIdentity) String() string {
	return string(m)
}

// EmbeddingVector is a fixed-length vector tagged with the model that produced it.
type EmbeddingVector struct {
	// Model is the identity of the producing embedding model.
	Model ModelIdentity

	// Values holds the vector components.
	Values []float32
}

// Dimensions returns the vector length.
func (v EmbeddingVector) Dimensions() int {
	return len(v.Values)
}
