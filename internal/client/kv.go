package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"
)

// KV - локальное хранилище ключ-значение, каждый ключ - отдельный JSON файл
type KV struct {
	fs  afero.Fs
	dir string
	mu  sync.Mutex
}

func NewKV(fsys afero.Fs, dir string) (*KV, error) {
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("создание каталога хранилища: %w", err)
	}
	return &KV{fs: fsys, dir: dir}, nil
}

func (k *KV) path(key string) string {
	return filepath.Join(k.dir, key+".json")
}

// Get читает значение ключа, отсутствующий ключ не ошибка
func (k *KV) Get(key string, v any) (bool, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	data, err := afero.ReadFile(k.fs, k.path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("чтение ключа %s: %w", key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("разбор ключа %s: %w", key, err)
	}
	return true, nil
}

// Put пишет во временный файл и переименовывает, чтобы не оставить половину записи
func (k *KV) Put(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("сериализация ключа %s: %w", key, err)
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	tmp := k.path(key) + ".tmp"
	if err := afero.WriteFile(k.fs, tmp, data, 0o644); err != nil {
		return fmt.Errorf("запись ключа %s: %w", key, err)
	}
	if err := k.fs.Rename(tmp, k.path(key)); err != nil {
		return fmt.Errorf("запись ключа %s: %w", key, err)
	}
	return nil
}
