package fanout

// broadcastGroup is the set of subscribers to one topic's records. It is
// mutated only by the demux task, so no locking is needed (spec §5
// "Shared-resource policy": membership is mutated only by the demux
// task). trySend implements the sliding-buffer drop policy per member.
type broadcastGroup[T any] struct {
	members map[chan T]func(T) bool
}

func newBroadcastGroup[T any]() *broadcastGroup[T] {
	return &broadcastGroup[T]{members: make(map[chan T]func(T) bool)}
}

func (g *broadcastGroup[T]) add(sink chan T, trySend func(T) bool) {
	g.members[sink] = trySend
}

// remove deletes sink from the group and reports whether it was a
// member. Callers use the result to avoid double-closing sink when
// remove is invoked more than once for the same subscription.
func (g *broadcastGroup[T]) remove(sink chan T) bool {
	if _, ok := g.members[sink]; !ok {
		return false
	}
	delete(g.members, sink)
	return true
}

// broadcast delivers v to every member without blocking on any of them.
func (g *broadcastGroup[T]) broadcast(v T) {
	for _, trySend := range g.members {
		trySend(v)
	}
}

// closeAll closes every member sink and clears the group. Used on
// shutdown to sever every broadcast group at once (spec §3 "stop...
// severs every broadcast group").
func (g *broadcastGroup[T]) closeAll() {
	for sink := range g.members {
		close(sink)
	}
	g.members = make(map[chan T]func(T) bool)
}
