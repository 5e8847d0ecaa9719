package database

import "indiverse/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Post{},
		&models.CommentRef{},
		&models.HeritageSite{},
		&models.Blog{},
		&models.State{},
		&models.Tour{},
		&models.Quiz{},
		&models.Message{},
	}
}
