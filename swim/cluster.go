package swim

import (
	"github.com/google/uuid"

	"github.com/redstarssystems/swim-sub000/secure"
)

// Cluster is the shared, read-only (once its owning Node is started)
// configuration entity
type Cluster struct {
	ID          uuid.UUID
	Name        string
	Description string
	Namespace   string
	secretToken string
	secretKey   [32]byte
	ClusterSize int
	Tags        map[string]struct{}
}

// NewCluster builds a Cluster, deriving the 32-byte secret key as
// SHA-256(secret-token)
func NewCluster(name, description, namespace, secretToken string, clusterSize int, tags []string) (*Cluster, error) {
	if clusterSize < 1 {
		return nil, validationErr("invalid-cluster-data", "cluster-size must be >= 1")
	}
	c := &Cluster{
		ID:          uuid.New(),
		Name:        name,
		Description: description,
		Namespace:   namespace,
		secretToken: secretToken,
		secretKey:   secure.DeriveKey(secretToken),
		ClusterSize: clusterSize,
		Tags:        make(map[string]struct{}, len(tags)),
	}
	for _, t := range tags {
		c.Tags[t] = struct{}{}
	}
	return c, nil
}

// SecretKey returns the derived 32-byte AES-256 key.
func (c *Cluster) SecretKey() [32]byte { return c.secretKey }

// TagList returns the tag set as a slice.
func (c *Cluster) TagList() []string {
	out := make([]string, 0, len(c.Tags))
	for t := range c.Tags {
		out = append(out, t)
	}
	return out
}
