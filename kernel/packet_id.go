package kernel

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"cosmossdk.io/collections"
	wasmvmtypes "github.com/CosmWasm/wasmvm/types"
)

// PacketID identifies one logical multi-hop transaction as chain.height.index.
type PacketID struct {
	ChainID string
	Height  uint64
	Index   uint64
}

func (p PacketID) String() string {
	return fmt.Sprintf("%s.%d.%d", p.ChainID, p.Height, p.Index)
}

func ParsePacketID(id string) (PacketID, error) {
	parts := strings.Split(id, ".")
	if len(parts) != 3 {
		return PacketID{}, invalidPacket("invalid packet id %q", id)
	}
	if parts[0] == "" {
		return PacketID{}, invalidPacket("invalid packet id %q: empty chain id", id)
	}
	height, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return PacketID{}, invalidPacket("invalid packet id %q: bad height", id)
	}
	index, err := strconv.ParseUint(parts[2], 10, 64)
	if err != nil {
		return PacketID{}, invalidPacket("invalid packet id %q: bad index", id)
	}
	return PacketID{ChainID: parts[0], Height: height, Index: index}, nil
}

func (c *Contract) txIndex(ctx context.Context) (uint64, error) {
	idx, err := c.state.TxIndex.Get(ctx)
	if errors.Is(err, collections.ErrNotFound) {
		return 0, nil
	}
	return idx, err
}

// packetID mints a fresh id when existing is empty, otherwise validates it.
//
// An id minted on this chain must carry the current height and an index this
// kernel already handed out. Ids from other chains are accepted as they are.
func (c *Contract) packetID(ctx context.Context, env wasmvmtypes.Env, existing string) (string, error) {
	idx, err := c.txIndex(ctx)
	if err != nil {
		return "", err
	}

	if existing == "" {
		id := PacketID{ChainID: env.Block.ChainID, Height: env.Block.Height, Index: idx}
		if err := c.state.TxIndex.Set(ctx, idx+1); err != nil {
			return "", err
		}
		return id.String(), nil
	}

	id, err := ParsePacketID(existing)
	if err != nil {
		return "", err
	}
	if id.ChainID != env.Block.ChainID {
		return existing, nil
	}
	if id.Height != env.Block.Height || id.Index >= idx {
		return "", invalidPacket("packet id %s does not match height %d index %d", existing, env.Block.Height, idx)
	}
	return existing, nil
}
