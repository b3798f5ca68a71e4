package flow

// Context is mutated by the executor as it walks a flow tree. Parallel
// branches each receive a Clone so siblings never
// observe each other's variable writes.
type Context struct {
	PreviousStepSuccess bool
	IterationCount      uint32
	Variables           map[string]interface{}
}

// NewContext returns a zero-valued Context ready for execute().
func NewContext() *Context {
	return &Context{Variables: make(map[string]interface{})}
}

// Clone returns a deep-enough copy for a Parallel branch: the Variables map
// is copied so branch writes don't leak across siblings.
func (c *Context) Clone() *Context {
	vars := make(map[string]interface{}, len(c.Variables))
	for k, v := range c.Variables {
		vars[k] = v
	}
	return &Context{
		PreviousStepSuccess: c.PreviousStepSuccess,
		IterationCount:      c.IterationCount,
		Variables:           vars,
	}
}
