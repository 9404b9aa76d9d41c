// Package msgcat renders user-facing notice text from YAML templates.
package msgcat

import (
    _ "embed"
    "fmt"
    "os"
    "path/filepath"
    "sort"
    "strings"
    "text/template"

    yaml "gopkg.in/yaml.v3"
)

//go:embed messages.en.yaml
var defaults []byte

// Catalog maps dot keys (errors.stale_turn, lobby.joined) to compiled
// templates. It is read-only after New, so it needs no locking.
type Catalog struct {
    tpls map[string]*template.Template
}

// New compiles the embedded English messages, replaced key by key with the
// YAML files in overrideDir when it is set. An override may only replace a
// key the defaults define, and every template must parse.
func New(overrideDir string) (*Catalog, error) {
    msgs, err := flatten(defaults)
    if err != nil { return nil, fmt.Errorf("embedded messages: %w", err) }
    if dir := strings.TrimSpace(overrideDir); dir != "" {
        over, err := loadDir(dir)
        if err != nil { return nil, err }
        for k, v := range over {
            if _, ok := msgs[k]; !ok { return nil, fmt.Errorf("override key %q is not a known message", k) }
            msgs[k] = v
        }
    }
    c := &Catalog{tpls: make(map[string]*template.Template, len(msgs))}
    for k, v := range msgs {
        if strings.TrimSpace(v) == "" { return nil, fmt.Errorf("message %q is empty", k) }
        t, err := template.New(k).Option("missingkey=error").Parse(v)
        if err != nil { return nil, fmt.Errorf("message %q: %w", k, err) }
        c.tpls[k] = t
    }
    return c, nil
}

// loadDir merges every *.yaml / *.yml file in dir. Two files setting the
// same key is an error.
func loadDir(dir string) (map[string]string, error) {
    entries, err := os.ReadDir(dir)
    if err != nil { return nil, fmt.Errorf("read messages dir: %w", err) }
    var names []string
    for _, e := range entries {
        switch strings.ToLower(filepath.Ext(e.Name())) {
        case ".yaml", ".yml":
            if !e.IsDir() { names = append(names, e.Name()) }
        }
    }
    sort.Strings(names)

    out := make(map[string]string)
    from := make(map[string]string)
    for _, name := range names {
        raw, err := os.ReadFile(filepath.Join(dir, name))
        if err != nil { return nil, fmt.Errorf("read %s: %w", name, err) }
        msgs, err := flatten(raw)
        if err != nil { return nil, fmt.Errorf("%s: %w", name, err) }
        for k, v := range msgs {
            if prev, dup := from[k]; dup { return nil, fmt.Errorf("key %q set in both %s and %s", k, prev, name) }
            from[k], out[k] = name, v
        }
    }
    return out, nil
}

// flatten turns nested YAML mappings into dot keys. Leaves must be strings.
func flatten(raw []byte) (map[string]string, error) {
    var doc yaml.Node
    if err := yaml.Unmarshal(raw, &doc); err != nil { return nil, err }
    out := make(map[string]string)
    if len(doc.Content) == 0 { return out, nil }
    return out, walk(doc.Content[0], "", out)
}

func walk(n *yaml.Node, prefix string, out map[string]string) error {
    switch n.Kind {
    case yaml.MappingNode:
        for i := 0; i+1 < len(n.Content); i += 2 {
            key := n.Content[i].Value
            if prefix != "" { key = prefix + "." + key }
            if err := walk(n.Content[i+1], key, out); err != nil { return err }
        }
        return nil
    case yaml.ScalarNode:
        if prefix == "" { return fmt.Errorf("line %d: top-level value needs a key", n.Line) }
        if n.ShortTag() != "!!str" { return fmt.Errorf("line %d: %s must be a string, got %s", n.Line, prefix, n.ShortTag()) }
        out[prefix] = n.Value
        return nil
    }
    return fmt.Errorf("line %d: %s must be a mapping or a string", n.Line, prefix)
}

// Render executes the template at key. A data field the template needs but
// data lacks is an error.
func (c *Catalog) Render(key string, data any) (string, error) {
    t, ok := c.tpls[strings.TrimSpace(key)]
    if !ok { return "", fmt.Errorf("unknown message %q", key) }
    var b strings.Builder
    if err := t.Execute(&b, data); err != nil { return "", err }
    return b.String(), nil
}

// Notice renders errors.<code>, falling back to fallback when the template
// is absent or fails to render.
func (c *Catalog) Notice(code string, data any, fallback string) string {
    return c.renderOr("errors."+code, data, fallback)
}

// LobbyNotice renders lobby.<event> (joined, left) for a lobby response.
// It returns "" when nothing renders.
func (c *Catalog) LobbyNotice(event, playerID string, team int) string {
    return c.renderOr("lobby."+event, map[string]any{"Player": playerID, "Team": team}, "")
}

func (c *Catalog) renderOr(key string, data any, fallback string) string {
    if c == nil { return fallback }
    out, err := c.Render(key, data)
    if err != nil || strings.TrimSpace(out) == "" { return fallback }
    return out
}
