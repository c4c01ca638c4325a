package correlation

// Processor is a tracked request that consumes inbound messages of type In.
type Processor[In any] interface {
	Tracked
	ProcessResponse(msg In)
}

// Handler routes inbound messages of one command family to pending requests.
// Route extracts the correlation id and reports whether the message kind belongs
// to this family at all.
type Handler[M Processor[In], In any] struct {
	*Registry[M]
	route func(msg In) (id string, ok bool)
}

func NewHandler[M Processor[In], In any](name string, route func(In) (string, bool)) *Handler[M, In] {
	return &Handler[M, In]{Registry: NewRegistry[M](name), route: route}
}

// HandleMessage returns false for message kinds this family does not understand.
// A recognised kind with an unknown id is still consumed so that no other family
// claims it.
func (h *Handler[M, In]) HandleMessage(msg In) bool {
	id, ok := h.route(msg)
	if !ok {
		return false
	}
	h.Dispatch(id, func(m M) { m.ProcessResponse(msg) })
	return true
}

// RejectMessage evicts a request that already completed on its own.
func (h *Handler[M, In]) RejectMessage(id string) {
	h.Evict(id)
}
