// Package seed loads catalog content and generates demo community data for
// development databases.
package seed

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"indiverse/internal/models"

	"gopkg.in/yaml.v3"
	"gorm.io/datatypes"
)

// Catalog file base names under the data directory. Each is read as
// <name>.json, <name>.yaml or <name>.yml, first match wins.
const (
	HeritageFile = "heritage"
	BlogsFile    = "blogs"
	StatesFile   = "states"
	ToursFile    = "tours"
	QuizzesFile  = "quizzes"
)

var extensions = []string{".json", ".yaml", ".yml"}

// Catalog is the content of a data directory, ready to upsert.
type Catalog struct {
	Sites   []models.HeritageSite
	Blogs   []models.Blog
	States  []models.State
	Tours   []models.Tour
	Quizzes []models.Quiz
}

// LoadCatalog reads every catalog file found in dir. Missing files leave
// their section empty.
//
// Files hold an array of documents. states and quizzes may instead be an
// object keyed by id; a quiz entry's value may be its bare question list.
func LoadCatalog(dir string) (*Catalog, error) {
	cat := &Catalog{}

	sites, err := loadDocuments(dir, HeritageFile, keepKeyed("id"))
	if err != nil {
		return nil, err
	}
	for i, doc := range sites {
		id := stringField(doc, "id")
		if id == "" {
			return nil, fmt.Errorf("%s entry %d has no id", HeritageFile, i)
		}
		raw, err := json.Marshal(doc)
		if err != nil {
			return nil, err
		}
		cat.Sites = append(cat.Sites, models.HeritageSite{SiteID: id, Name: stringField(doc, "name"), Document: datatypes.JSON(raw)})
	}

	blogs, err := loadDocuments(dir, BlogsFile, keepKeyed("id"))
	if err != nil {
		return nil, err
	}
	for i, doc := range blogs {
		id := stringField(doc, "id")
		if id == "" {
			return nil, fmt.Errorf("%s entry %d has no id", BlogsFile, i)
		}
		raw, err := json.Marshal(doc)
		if err != nil {
			return nil, err
		}
		cat.Blogs = append(cat.Blogs, models.Blog{ID: id, Date: stringField(doc, "date"), Document: datatypes.JSON(raw)})
	}

	states, err := loadDocuments(dir, StatesFile, keepKeyed("id"))
	if err != nil {
		return nil, err
	}
	for i, doc := range states {
		id := stringField(doc, "id")
		if id == "" {
			return nil, fmt.Errorf("%s entry %d has no id", StatesFile, i)
		}
		raw, err := json.Marshal(doc)
		if err != nil {
			return nil, err
		}
		cat.States = append(cat.States, models.State{ID: id, Document: datatypes.JSON(raw)})
	}

	tours, err := loadDocuments(dir, ToursFile, keepKeyed("id"))
	if err != nil {
		return nil, err
	}
	for i, doc := range tours {
		id := stringField(doc, "id")
		if id == "" {
			return nil, fmt.Errorf("%s entry %d has no id", ToursFile, i)
		}
		raw, err := json.Marshal(doc)
		if err != nil {
			return nil, err
		}
		cat.Tours = append(cat.Tours, models.Tour{ID: id, MonumentIDs: stringList(doc["monumentIds"]), Document: datatypes.JSON(raw)})
	}

	quizzes, err := loadDocuments(dir, QuizzesFile, quizKeyed)
	if err != nil {
		return nil, err
	}
	for i, doc := range quizzes {
		id := stringField(doc, "monumentId")
		if id == "" {
			return nil, fmt.Errorf("%s entry %d has no monumentId", QuizzesFile, i)
		}
		raw, err := json.Marshal(doc)
		if err != nil {
			return nil, err
		}
		cat.Quizzes = append(cat.Quizzes, models.Quiz{MonumentID: id, Document: datatypes.JSON(raw)})
	}

	return cat, nil
}

// keyedFunc turns one entry of an object-shaped file into a document.
type keyedFunc func(key string, value any) (map[string]any, error)

// keepKeyed uses the value as the document, filling field from the key when
// the document lacks it.
func keepKeyed(field string) keyedFunc {
	return func(key string, value any) (map[string]any, error) {
		doc, ok := value.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("entry %q is not an object", key)
		}
		if stringField(doc, field) == "" {
			doc[field] = key
		}
		return doc, nil
	}
}

func quizKeyed(key string, value any) (map[string]any, error) {
	if questions, ok := value.([]any); ok {
		return map[string]any{"monumentId": key, "questions": questions}, nil
	}
	return keepKeyed("monumentId")(key, value)
}

func loadDocuments(dir, base string, keyed keyedFunc) ([]map[string]any, error) {
	raw, ok, err := readFile(dir, base)
	if err != nil || !ok {
		return nil, err
	}

	var docs []map[string]any
	switch v := raw.(type) {
	case nil:
	case []any:
		for i, item := range v {
			doc, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%s entry %d is not an object", base, i)
			}
			docs = append(docs, doc)
		}
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			doc, err := keyed(k, v[k])
			if err != nil {
				return nil, fmt.Errorf("%s: %w", base, err)
			}
			docs = append(docs, doc)
		}
	default:
		return nil, fmt.Errorf("%s: expected an array or object, got %T", base, raw)
	}
	return docs, nil
}

func readFile(dir, base string) (any, bool, error) {
	for _, ext := range extensions {
		name := filepath.Join(dir, base+ext)
		data, err := os.ReadFile(name)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, false, err
		}

		var doc any
		if ext == ".json" {
			err = json.Unmarshal(data, &doc)
		} else {
			err = yaml.Unmarshal(data, &doc)
		}
		if err != nil {
			return nil, false, fmt.Errorf("parse %s: %w", name, err)
		}
		return doc, true, nil
	}
	return nil, false, nil
}

func stringField(doc map[string]any, key string) string {
	switch v := doc[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

func stringList(v any) datatypes.JSONSlice[string] {
	items, _ := v.([]any)
	out := make(datatypes.JSONSlice[string], 0, len(items))
	for _, item := range items {
		out = append(out, fmt.Sprint(item))
	}
	return out
}
