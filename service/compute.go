package service

type AddArgs struct {
	A, B int
}

type AddReply struct {
	Result int
}

// ComputeImpl is the integer arithmetic service.
type ComputeImpl struct{}

func (c *ComputeImpl) Add(args *AddArgs, reply *AddReply) error {
	reply.Result = args.A + args.B
	return nil
}
