package anvil

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/astei/anvilworld/nbt"
)

func TestMultiplayerPlayer(t *testing.T) {
	a, root := createWorld(t)
	id := uuid.New().String()

	p, err := a.CreatePlayer(id)
	if err != nil {
		t.Fatalf("create player: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "playerdata", id+".dat")); err != nil {
		t.Fatalf("player file not written at once: %v", err)
	}
	if p.Health() != 20 || p.Air() != 300 || p.Fire() != -20 || p.GameType() != GameTypeSurvival {
		t.Fatalf("defaults: health=%d air=%d fire=%d gametype=%d", p.Health(), p.Air(), p.Fire(), p.GameType())
	}
	if _, err := a.CreatePlayer(id); !errors.Is(err, ErrExists) {
		t.Fatalf("second create: err=%v want ErrExists", err)
	}

	p.SetHealth(5)
	p.SetPosition(1.5, 65, -2.5)
	p.SetRotation(90, -10)
	if err := p.SetGameType(GameTypeCreative); err != nil {
		t.Fatalf("set game type: %v", err)
	}
	want := uuid.MustParse(id)
	p.SetUUID(want)
	if err := p.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := a.Player(id)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.Health() != 5 || got.Position() != [3]float64{1.5, 65, -2.5} {
		t.Fatalf("health=%d pos=%v", got.Health(), got.Position())
	}
	if yaw, pitch := got.Rotation(); yaw != 90 || pitch != -10 {
		t.Fatalf("rotation=%v,%v", yaw, pitch)
	}
	if !got.Ability("instabuild") || !got.Ability("mayfly") || got.GameType() != GameTypeCreative {
		t.Fatalf("creative abilities not stored")
	}
	if got.UUID() != want {
		t.Fatalf("uuid=%v want %v", got.UUID(), want)
	}

	ids, err := a.ListPlayers()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if diff := cmp.Diff([]string{id}, ids); diff != "" {
		t.Fatalf("players mismatch (-want +got):\n%s", diff)
	}
}

func TestSinglePlayerDeferredToMetadata(t *testing.T) {
	a, root := createWorld(t)

	if _, err := a.PlayerTag(""); !errors.Is(err, ErrPlayerNotFound) {
		t.Fatalf("missing single player: err=%v want ErrPlayerNotFound", err)
	}
	p, err := a.CreatePlayer("")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !a.Metadata.Dirty || !a.Metadata.HasPlayer() {
		t.Fatalf("single player must live in dirty metadata")
	}
	if _, err := a.CreatePlayer(""); !errors.Is(err, ErrExists) {
		t.Fatalf("second create: err=%v want ErrExists", err)
	}

	p.SetScore(42)
	if err := p.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := a.SyncToDisk(); err != nil {
		t.Fatalf("sync: %v", err)
	}
	a.Close()

	b, err := Open(root, testOptions(Options{ReadOnly: true}))
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer b.Close()
	got, err := b.Player("")
	if err != nil {
		t.Fatalf("player: %v", err)
	}
	if got.Score() != 42 {
		t.Fatalf("score=%d want 42", got.Score())
	}
	ids, _ := b.ListPlayers()
	if diff := cmp.Diff([]string{""}, ids); diff != "" {
		t.Fatalf("players mismatch (-want +got):\n%s", diff)
	}
}

func TestPlayerPreconditions(t *testing.T) {
	a, _ := createWorld(t)

	if _, err := a.CreatePlayer("not-a-uuid"); !errors.Is(err, ErrInvalidPlayerID) {
		t.Fatalf("bad id: err=%v want ErrInvalidPlayerID", err)
	}
	if _, err := a.Player(uuid.New().String()); !errors.Is(err, ErrPlayerNotFound) {
		t.Fatalf("unknown player: err=%v want ErrPlayerNotFound", err)
	}
}

func TestPlayerIDCannotLeavePlayerdata(t *testing.T) {
	a, root := createWorld(t)
	const escaping = "../../escaped"

	if err := a.SavePlayerTag(escaping, nbt.Compound{"Health": int16(1)}); !errors.Is(err, ErrInvalidPlayerID) {
		t.Fatalf("save: err=%v want ErrInvalidPlayerID", err)
	}
	if _, err := a.PlayerTag(escaping); !errors.Is(err, ErrInvalidPlayerID) {
		t.Fatalf("read: err=%v want ErrInvalidPlayerID", err)
	}
	if _, err := a.CreatePlayer(escaping); !errors.Is(err, ErrInvalidPlayerID) {
		t.Fatalf("create: err=%v want ErrInvalidPlayerID", err)
	}
	for _, dir := range []string{root, filepath.Dir(root), filepath.Dir(filepath.Dir(root))} {
		if _, err := os.Stat(filepath.Join(dir, "escaped.dat")); err == nil {
			t.Fatalf("escaped.dat written in %s", dir)
		}
	}

	// files in playerdata that are not named by a UUID are not players
	if err := os.MkdirAll(filepath.Join(root, "playerdata"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "playerdata", "notes.dat"), []byte{0}, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	ids, err := a.ListPlayers()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("players=%q want none", ids)
	}
}

func TestLeavingCreativeClearsAbilities(t *testing.T) {
	a, _ := createWorld(t)
	p, err := a.CreatePlayer(uuid.New().String())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := p.SetGameType(GameTypeCreative); err != nil {
		t.Fatalf("creative: %v", err)
	}
	p.SetAbility("flying", true)
	if err := p.SetGameType(GameTypeSurvival); err != nil {
		t.Fatalf("survival: %v", err)
	}
	for _, name := range []string{"instabuild", "mayfly", "invulnerable", "flying"} {
		if p.Ability(name) {
			t.Errorf("%s still set after leaving creative", name)
		}
	}
}

func TestPlayerDimension(t *testing.T) {
	a, _ := createWorld(t)
	p, err := a.CreatePlayer(uuid.New().String())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if name, err := p.DimName(); err != nil || name != "" {
		t.Fatalf("default dimension %q %v", name, err)
	}
	if err := p.SetDimName("DIM-1"); err != nil {
		t.Fatalf("set dim: %v", err)
	}
	if name, _ := p.DimName(); name != "DIM-1" || p.Dimension() != -1 {
		t.Fatalf("dim=%q number=%d", name, p.Dimension())
	}
	// Dimension is stored under the OnGround key.
	if v, _ := p.Tag.Int("OnGround"); v != -1 {
		t.Fatalf("OnGround=%d want -1", v)
	}
	if err := p.SetDimName("DIM7"); err == nil {
		t.Fatalf("unknown dimension accepted")
	}
}
