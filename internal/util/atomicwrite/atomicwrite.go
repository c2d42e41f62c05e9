// Package atomicwrite escribe archivos de forma atómica vía un temporal y
// rename. El token de servicio persistido pasa siempre por acá: un crash a
// mitad de escritura no puede dejar el archivo sellado corrupto.
package atomicwrite

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// AtomicWriteFile escribe data en path con los permisos dados. El contenido
// se vuelca a un temporal en el mismo directorio, se sincroniza y recién
// entonces se renombra sobre el destino.
//
// En Windows el rename falla si el destino existe o está bloqueado; en ese
// caso se reintenta tras remover el destino, preservando el archivo viejo
// cuando tampoco eso funciona.
func AtomicWriteFile(path string, data []byte, perm fs.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("fsync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}
	_ = os.Chmod(tmpPath, perm)

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(path)
		if err2 := os.Rename(tmpPath, path); err2 != nil {
			return fmt.Errorf("rename: %v (tras remove: %v)", err, err2)
		}
	}
	return nil
}
