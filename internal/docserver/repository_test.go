package docserver

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/five82/cubespace/internal/cube"
	"github.com/five82/cubespace/internal/docstore"
)

func openMemory(t *testing.T) *Repository {
	t.Helper()
	repo, err := OpenRepository(":memory:")
	if err != nil {
		t.Fatalf("OpenRepository: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestRepository_Sessions(t *testing.T) {
	repo := openMemory(t)
	ctx := context.Background()

	token, err := repo.CreateSession(ctx)
	if err != nil || token == "" {
		t.Fatalf("CreateSession = %q, %v", token, err)
	}
	for in, want := range map[string]bool{token: true, "bogus": false, "": false} {
		got, err := repo.ValidSession(ctx, in)
		if err != nil || got != want {
			t.Fatalf("ValidSession(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
}

func TestRepository_CubesRoundTripInCreationOrder(t *testing.T) {
	repo := openMemory(t)
	ctx := context.Background()
	clock := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return clock }

	owner, err := repo.CreateOwner(ctx, docstore.OwnerInput{Name: "Ada", ProfileURL: "https://example.com/ada"})
	if err != nil {
		t.Fatalf("CreateOwner: %v", err)
	}

	first, err := repo.CreateCube(ctx, docstore.CubeInput{
		OwnerID:       owner.OwnerID,
		Color:         "#ff0000",
		DropPosition:  cube.Vec3{X: 1, Y: 8, Z: 2},
		FinalPosition: cube.Vec3{X: 1, Y: 0.5, Z: 2},
		FinalRotation: &cube.Quat{Y: 0.5, W: 0.8660254},
	})
	if err != nil {
		t.Fatalf("CreateCube: %v", err)
	}
	clock = clock.Add(500 * time.Millisecond)
	second, err := repo.CreateCube(ctx, docstore.CubeInput{OwnerID: owner.OwnerID, Color: "#00f"})
	if err != nil {
		t.Fatalf("CreateCube: %v", err)
	}

	cubes, err := repo.ListCubes(ctx)
	if err != nil {
		t.Fatalf("ListCubes: %v", err)
	}
	if len(cubes) != 2 || cubes[0].RemoteID != first.RemoteID || cubes[1].RemoteID != second.RemoteID {
		t.Fatalf("cubes = %+v", cubes)
	}
	got := cubes[0]
	if got.FinalPosition == nil || got.FinalPosition.Y != 0.5 || got.DropPosition.Y != 8 {
		t.Fatalf("positions = %+v", got)
	}
	if got.FinalRotation == nil || got.FinalRotation.W != 0.8660254 {
		t.Fatalf("rotation = %+v", got.FinalRotation)
	}
	if cubes[1].FinalRotation != nil {
		t.Fatalf("second cube should have no rotation")
	}
	if !got.CreatedAt.Equal(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("created_at = %v", got.CreatedAt)
	}

	owners, err := repo.ListOwners(ctx)
	if err != nil || len(owners) != 1 || owners[0].Name != "Ada" || owners[0].ProfileURL == "" {
		t.Fatalf("owners = %+v, %v", owners, err)
	}
}

func TestRepository_CubeNeedsOwner(t *testing.T) {
	repo := openMemory(t)
	_, err := repo.CreateCube(context.Background(), docstore.CubeInput{OwnerID: "nobody", Color: "#fff"})
	if !errors.Is(err, ErrUnknownOwner) {
		t.Fatalf("err = %v, want ErrUnknownOwner", err)
	}
}

func TestRepository_PersistsToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "store.db")
	repo, err := OpenRepository(path)
	if err != nil {
		t.Fatalf("OpenRepository: %v", err)
	}
	if _, err := repo.CreateOwner(context.Background(), docstore.OwnerInput{Name: "Ada"}); err != nil {
		t.Fatalf("CreateOwner: %v", err)
	}
	if err := repo.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := OpenRepository(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = reopened.Close() }()
	owners, err := reopened.ListOwners(context.Background())
	if err != nil || len(owners) != 1 {
		t.Fatalf("owners after reopen = %+v, %v", owners, err)
	}
}

func TestValidator(t *testing.T) {
	v, err := NewValidator()
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	tests := []struct {
		name    string
		check   func([]byte) error
		body    string
		wantErr bool
	}{
		{"owner ok", v.Owner, `{"name":"Ada"}`, false},
		{"owner blank", v.Owner, `{"name":"  "}`, true},
		{"owner extra field", v.Owner, `{"name":"Ada","admin":true}`, true},
		{"cube ok", v.Cube, `{"ownerId":"o","color":"#abc","dropPosition":{"x":0,"y":1,"z":0},"finalPosition":{"x":0,"y":0.5,"z":0}}`, false},
		{"cube with rotation", v.Cube, `{"ownerId":"o","color":"#aabbcc","dropPosition":{"x":0,"y":1,"z":0},"finalPosition":{"x":0,"y":0.5,"z":0},"finalRotation":{"x":0,"y":0,"z":0,"w":1}}`, false},
		{"cube bad color", v.Cube, `{"ownerId":"o","color":"red","dropPosition":{"x":0,"y":1,"z":0},"finalPosition":{"x":0,"y":0.5,"z":0}}`, true},
		{"cube missing final", v.Cube, `{"ownerId":"o","color":"#abc","dropPosition":{"x":0,"y":1,"z":0}}`, true},
		{"not json", v.Cube, `{`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.check([]byte(tt.body))
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
