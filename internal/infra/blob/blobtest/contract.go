// Package blobtest holds the behaviour every blob backend must share.
package blobtest

import (
	"context"
	"errors"
	"io"
	"reflect"
	"strings"
	"testing"

	"gradebook/internal/blob/core"
)

// Run exercises store, which must start empty.
func Run(t *testing.T, store core.Store) {
	t.Helper()
	ctx := context.Background()

	info, err := store.Put(ctx, "lessons/l1/plan.pdf", strings.NewReader("plan"), core.PutOptions{
		ContentType: "application/pdf",
		Metadata:    map[string]string{"lesson": "l1"},
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Key != "lessons/l1/plan.pdf" || info.Size != 4 || info.ContentType != "application/pdf" {
		t.Fatalf("unexpected info %+v", info)
	}

	if _, err := store.Put(ctx, "lessons/l1/plan.pdf", strings.NewReader("again"), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	if _, err := store.Put(ctx, "../escape", strings.NewReader("x"), core.PutOptions{}); !errors.Is(err, core.ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}

	got, rc, err := store.Get(ctx, "lessons/l1/plan.pdf")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, err := io.ReadAll(rc)
	_ = rc.Close()
	if err != nil || string(body) != "plan" {
		t.Fatalf("unexpected body %q (%v)", body, err)
	}
	if !reflect.DeepEqual(got.Metadata, map[string]string{"lesson": "l1"}) {
		t.Fatalf("unexpected metadata %v", got.Metadata)
	}

	head, err := store.Head(ctx, "lessons/l1/plan.pdf")
	if err != nil || head.Size != 4 {
		t.Fatalf("head: %+v %v", head, err)
	}
	if _, err := store.Head(ctx, "lessons/none"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound from head, got %v", err)
	}
	if _, _, err := store.Get(ctx, "lessons/none"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound from get, got %v", err)
	}

	if _, err := store.Put(ctx, "lessons/l2/notes.txt", strings.NewReader("n"), core.PutOptions{}); err != nil {
		t.Fatalf("put second: %v", err)
	}
	if _, err := store.Put(ctx, "misc/other.txt", strings.NewReader("o"), core.PutOptions{}); err != nil {
		t.Fatalf("put third: %v", err)
	}
	list, err := store.List(ctx, "lessons/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var keys []string
	for _, item := range list {
		keys = append(keys, item.Key)
	}
	if want := []string{"lessons/l1/plan.pdf", "lessons/l2/notes.txt"}; !reflect.DeepEqual(keys, want) {
		t.Fatalf("expected %v, got %v", want, keys)
	}

	ok, err := store.Delete(ctx, "lessons/l1/plan.pdf")
	if err != nil || !ok {
		t.Fatalf("delete: %v %v", ok, err)
	}
	ok, err = store.Delete(ctx, "lessons/l1/plan.pdf")
	if err != nil || ok {
		t.Fatalf("second delete should report missing: %v %v", ok, err)
	}
	if all, err := store.List(ctx, ""); err != nil || len(all) != 2 {
		t.Fatalf("expected 2 remaining blobs, got %d (%v)", len(all), err)
	}
}
