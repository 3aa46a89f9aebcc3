// Package storage manages the local media folder that the harvest command
// fills and the folder source draws from.
//
// Files are written through a temporary file and an atomic rename, and the
// Manager keeps an in-memory index of what is already on disk so repeated
// harvests skip media they fetched before.
//
// Usage:
//
//	manager, err := storage.NewManager("images", "jpg", "png")
//	if err != nil {
//	    return err
//	}
//
//	if !manager.IsDownloaded("cursedimages-1453-1454.jpg") {
//	    err = manager.Save(body, "cursedimages-1453-1454.jpg")
//	}
package storage
