package kernel

import (
	errorsmod "cosmossdk.io/errors"
)

const ModuleName = "kernel"

var (
	ErrUnauthorized                          = errorsmod.Register(ModuleName, 2, "unauthorized")
	ErrInvalidPacket                         = errorsmod.Register(ModuleName, 3, "invalid packet")
	ErrInsufficientFunds                     = errorsmod.Register(ModuleName, 4, "insufficient funds")
	ErrInvalidFunds                          = errorsmod.Register(ModuleName, 5, "invalid funds")
	ErrInvalidEnvironmentVariable            = errorsmod.Register(ModuleName, 6, "invalid environment variable")
	ErrEnvironmentVariableNotFound           = errorsmod.Register(ModuleName, 7, "environment variable not found")
	ErrCrossChainComponentsCurrentlyDisabled = errorsmod.Register(ModuleName, 8, "cross chain components currently disabled")
	ErrNotImplemented                        = errorsmod.Register(ModuleName, 9, "not implemented")
	ErrInvalidReplyID                        = errorsmod.Register(ModuleName, 10, "invalid reply id")
	ErrInvalidAddress                        = errorsmod.Register(ModuleName, 11, "invalid address")
	ErrNotFound                              = errorsmod.Register(ModuleName, 12, "not found")
	ErrGeneric                               = errorsmod.Register(ModuleName, 13, "generic error")
	ErrOrderedChannel                        = errorsmod.Register(ModuleName, 14, "only unordered channels are supported")
	ErrInvalidVersion                        = errorsmod.Register(ModuleName, 15, "invalid channel version")
	ErrInvalidMsg                            = errorsmod.Register(ModuleName, 16, "invalid message")
)

func invalidPacket(format string, args ...interface{}) error {
	return errorsmod.Wrapf(ErrInvalidPacket, format, args...)
}
