package reconcile

// Sink is the output surface the engine keeps synchronized. Operations
// must be applied in call order, each completing before the next is
// issued. Delete removes n logical characters from the end of the
// surface; Insert appends text at the end.
type Sink interface {
	Delete(n int) error
	Insert(text string) error
}

// Op is one recorded sink operation. Exactly one of Delete or Insert
// is meaningful per op.
type Op struct {
	Delete int
	Insert string
}

// Recorder captures the operation sequence issued to it, optionally
// forwarding each operation to another sink. It serves as the test
// double for the engine and as the transcript tee in live sessions.
type Recorder struct {
	Ops     []Op
	Forward Sink
}

// Delete records the deletion and forwards it if a target is set.
func (r *Recorder) Delete(n int) error {
	r.Ops = append(r.Ops, Op{Delete: n})
	if r.Forward != nil {
		return r.Forward.Delete(n)
	}
	return nil
}

// Insert records the insertion and forwards it if a target is set.
func (r *Recorder) Insert(text string) error {
	r.Ops = append(r.Ops, Op{Insert: text})
	if r.Forward != nil {
		return r.Forward.Insert(text)
	}
	return nil
}

// Take returns the recorded operations and clears the record.
func (r *Recorder) Take() []Op {
	ops := r.Ops
	r.Ops = nil
	return ops
}
