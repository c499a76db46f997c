package claim

import (
	"context"
	"strings"
)

// StaticBlacklist is a fixed set of barred BAN addresses, typically
// exchange hot wallets loaded from configuration.
type StaticBlacklist struct {
	addresses map[string]struct{}
}

func NewStaticBlacklist(addresses []string) *StaticBlacklist {
	set := make(map[string]struct{}, len(addresses))
	for _, addr := range addresses {
		set[strings.ToLower(addr)] = struct{}{}
	}
	return &StaticBlacklist{addresses: set}
}

func (b *StaticBlacklist) Contains(_ context.Context, banWallet string) (bool, error) {
	_, ok := b.addresses[strings.ToLower(banWallet)]
	return ok, nil
}
