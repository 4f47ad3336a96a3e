package crdt

// Digest is a compact summary of a replica's causal state, exchanged
// during anti-entropy reconciliation (supplemented feature, grounded on
// original_source's core_store/sync/anti_entropy.rs) so two nodes can
// figure out which operations each is missing without shipping full
// state up front.
type Digest struct {
	VC VectorClock
}

// NewDigest snapshots vc into a Digest.
func NewDigest(vc VectorClock) Digest {
	return Digest{VC: vc.Clone()}
}

// ReconcileResult reports, per node id, how far behind each side is. A
// node id present in `LocalBehind` maps to the remote's counter for that
// node: the local replica is missing that node's operations after its own
// counter, up to and including LocalBehind[node]; symmetrically for
// RemoteBehind.
type ReconcileResult struct {
	LocalBehind  map[string]uint64 // node -> remote counter local hasn't seen
	RemoteBehind map[string]uint64 // node -> local counter remote hasn't seen
}

// Reconcile computes which operations each side is missing relative to
// the other, purely from the two vector clocks. The caller uses this to
// request the missing op-log ranges per node from its peer.
func Reconcile(local, remote Digest) ReconcileResult {
	result := ReconcileResult{
		LocalBehind:  make(map[string]uint64),
		RemoteBehind: make(map[string]uint64),
	}
	nodes := unionKeys(local.VC, remote.VC)
	for _, n := range nodes {
		l, r := local.VC[n], remote.VC[n]
		if r > l {
			result.LocalBehind[n] = r
		}
		if l > r {
			result.RemoteBehind[n] = l
		}
	}
	return result
}

// InSync reports whether the two digests carry identical causal history.
func (r ReconcileResult) InSync() bool {
	return len(r.LocalBehind) == 0 && len(r.RemoteBehind) == 0
}
