package anvil

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/astei/anvilworld/nbt"
	"github.com/astei/anvilworld/worldfolder"
)

const playerDataDir = "playerdata"

func playerFilePath(id string) string {
	return path.Join(playerDataDir, id+".dat")
}

// checkPlayerID accepts "" for the single player and UUIDs for playerdata
// files. Anything else could escape playerdata/.
func checkPlayerID(id string) error {
	if id == "" {
		return nil
	}
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidPlayerID, id, err)
	}
	return nil
}

// ListPlayers returns the ids of the players stored in playerdata/, followed
// by "" when the world embeds a single-player record.
func (a *Adapter) ListPlayers() ([]string, error) {
	files, err := a.store.ListFolder(playerDataDir)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, f := range files {
		if !strings.HasSuffix(f, ".dat") {
			continue
		}
		id := strings.TrimSuffix(path.Base(f), ".dat")
		if id == "" || checkPlayerID(id) != nil {
			continue
		}
		ids = append(ids, id)
	}
	if a.Metadata.HasPlayer() {
		ids = append(ids, "")
	}
	return ids, nil
}

// PlayerTag returns the record of player id. The empty id names the
// single-player record inside level.dat.
func (a *Adapter) PlayerTag(id string) (nbt.Compound, error) {
	if err := checkPlayerID(id); err != nil {
		return nil, err
	}
	if id == "" {
		tag, ok := a.Metadata.PlayerTag()
		if !ok {
			return nil, fmt.Errorf("%w: single player", ErrPlayerNotFound)
		}
		return tag, nil
	}

	buf, err := a.store.ReadFile(playerFilePath(id))
	if errors.Is(err, worldfolder.ErrFileNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrPlayerNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return nbt.Load(buf)
}

func (a *Adapter) Player(id string) (*Player, error) {
	return newPlayer(a, id)
}

// SavePlayerTag stores a player record. The single-player record is written
// with the metadata on the next SyncToDisk.
func (a *Adapter) SavePlayerTag(id string, tag nbt.Compound) error {
	if a.readOnly {
		return ErrReadOnly
	}
	if err := checkPlayerID(id); err != nil {
		return err
	}
	if id == "" {
		a.Metadata.setPlayerTag(tag)
		return nil
	}
	buf, err := nbt.Save(tag, true)
	if err != nil {
		return err
	}
	return a.store.WriteFile(playerFilePath(id), buf)
}

// CreatePlayer adds a player record filled with defaults. Multiplayer records
// are written at once after checking the session lock.
func (a *Adapter) CreatePlayer(id string) (*Player, error) {
	if a.readOnly {
		return nil, ErrReadOnly
	}

	if err := checkPlayerID(id); err != nil {
		return nil, err
	}
	if id == "" {
		if a.Metadata.HasPlayer() {
			return nil, fmt.Errorf("%w: single player", ErrExists)
		}
	} else {
		exists, err := a.store.ContainsFile(playerFilePath(id))
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, fmt.Errorf("%w: player %s", ErrExists, id)
		}
	}

	p := &Player{ID: id, Tag: nbt.Compound{}, adapter: a}
	p.ApplyDefaults()

	if id == "" {
		a.Metadata.setPlayerTag(p.Tag)
	} else {
		if err := a.CheckSessionLock(); err != nil {
			return nil, err
		}
		if err := a.SavePlayerTag(id, p.Tag); err != nil {
			return nil, err
		}
	}
	return a.Player(id)
}
