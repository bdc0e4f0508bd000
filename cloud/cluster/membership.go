package cluster

//go:generate mockgen -source=membership.go -package=cluster -destination=membership_mock.go

// Membership is what the scheduler and agent need from the cluster.
type Membership interface {
	// Members returns every live member, sorted by name.
	Members() []Node
	// Nodes returns the live members that accept jobs for grid, sorted by name.
	Nodes(grid string) []Node
	// Grids lists every grid some member has joined, always including the default grid.
	Grids() []string
	// PublishTag sets one of the local node's tags. Writing an unchanged value is a no-op.
	PublishTag(key, value string) error
	JoinGrids(grids ...string) error
	LeaveGrids(grids ...string) error
	// Subscribe subscribes to changes to the cluster.
	Subscribe() Subscription
	// Close stops monitoring the cluster.
	Close() error
}

// Backend is a membership store: it lists members and holds the local node's tags.
type Backend interface {
	Fetcher
	// SetTags replaces the tags the local node advertises.
	SetTags(tags map[string]string) error
	Close() error
}
