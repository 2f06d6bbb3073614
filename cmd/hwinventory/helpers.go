package main

import (
	"context"
	"fmt"

	"github.com/stone-age-io/hwinventory/internal/directory"
	"github.com/stone-age-io/hwinventory/internal/store"
)

type lister interface {
	FetchAssets(ctx context.Context) []directory.Item
	FetchRooms(ctx context.Context) []directory.Item
	FetchUsers(ctx context.Context) []directory.Item
}

func listItems(ctx context.Context, dir lister, kind string) ([]directory.Item, error) {
	switch kind {
	case "assets":
		return dir.FetchAssets(ctx), nil
	case "rooms":
		return dir.FetchRooms(ctx), nil
	case "users":
		return dir.FetchUsers(ctx), nil
	default:
		return nil, fmt.Errorf("unknown list %q: want assets, rooms or users", kind)
	}
}

func selectionFromFlags() store.Selection {
	return store.Selection{
		Asset:       submitAsset,
		Responsible: submitResponsible,
		Room:        submitRoom,
	}
}
