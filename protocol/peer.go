package protocol

import "context"

type peerKey struct{}

// WithPeer tags ctx with the connection a request arrived on.
func WithPeer(ctx context.Context, peer string) context.Context {
	return context.WithValue(ctx, peerKey{}, peer)
}

// PeerFrom returns the connection tag of ctx, or "" when there is none.
func PeerFrom(ctx context.Context) string {
	peer, _ := ctx.Value(peerKey{}).(string)
	return peer
}
