package pipenode

import "github.com/creachadair/pipenode/host"

// NameInput is the default input key holding the channel name.
const NameInput = "name"

// NewNode adapts r to a host engine node. Each solution reads the channel
// name from the input named key, computes r, and either sets the output or
// aborts the solution when the outcome is deferred. Diagnostics raised by
// the computation are attached to the solution as remarks.
//
// To be solved again after a delivery, r should be constructed with a
// Notify hook that expires the node, for example:
//
//	eng := host.New(nil)
//	r := pipenode.NewReceiver(decode, &pipenode.Options{
//		Notify: func() { eng.Expire("recv") },
//	})
//	eng.Add("recv", pipenode.NewNode(r, pipenode.NameInput), inputs)
func NewNode[T Payload[T]](r *Receiver[T], key string) host.Node {
	return host.NodeFunc(func(c *host.Context) {
		name, _ := c.Text(key)
		out := r.compute(name, func(msg string) { c.AddMessage(host.Remark, msg) })
		if v, ok := out.Get(); ok {
			c.SetOutput(v)
		} else {
			c.Abort()
		}
	})
}
