package consts

const (
	KernelPromNamespace = "andromeda"
	KernelSubsystem     = "kernel"
)
