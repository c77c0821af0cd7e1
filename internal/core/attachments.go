package core

import (
	"context"
	"errors"
	"io"
	"path"
	"regexp"
	"slices"
	"strings"

	"go.uber.org/zap"

	"gradebook/internal/blob"
	"gradebook/pkg/domain"
)

// KindAttachment is reported in NotFoundError for unknown attachment keys.
const KindAttachment domain.Kind = "attachment"

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func attachmentName(name string) string {
	name = unsafeNameChars.ReplaceAllString(path.Base(strings.ReplaceAll(name, `\`, "/")), "_")
	name = strings.Trim(name, "._")
	if name == "" {
		return "attachment"
	}
	return name
}

// AttachToLesson stores r in the blob store under the lesson's namespace and
// appends the key to the lesson's attachments. The blob is removed again if
// the lesson update cannot be committed.
func (s *Service) AttachToLesson(ctx context.Context, lessonID, name, contentType string, r io.Reader) (domain.Lesson, blob.Info, error) {
	var (
		updated domain.Lesson
		info    blob.Info
	)
	err := s.mutate(ctx, "attach_to_lesson", func(ctx context.Context) error {
		if s.blobs == nil {
			return ErrNoBlobStore
		}
		lesson, ok := s.cache.Lesson(lessonID)
		if !ok {
			return domain.NotFoundError{Kind: domain.KindLesson, ID: lessonID}
		}
		key := path.Join("lessons", lessonID, s.newID()+"-"+attachmentName(name))
		stored, err := s.blobs.Put(ctx, key, r, blob.PutOptions{
			ContentType: contentType,
			Metadata:    map[string]string{"lesson": lessonID, "name": name},
		})
		if err != nil {
			return err
		}
		lesson.Attachments = append(lesson.Attachments, stored.Key)
		if err := s.commit(ctx, domain.Put(domain.TableLessons, lesson)); err != nil {
			s.removeBlobs(ctx, []string{stored.Key})
			return err
		}
		updated, info = lesson, stored
		return nil
	}, zap.String("lesson_id", lessonID))
	return updated, info, err
}

// DetachFromLesson drops key from the lesson and deletes the blob.
func (s *Service) DetachFromLesson(ctx context.Context, lessonID, key string) (domain.Lesson, error) {
	var updated domain.Lesson
	err := s.mutate(ctx, "detach_from_lesson", func(ctx context.Context) error {
		lesson, ok := s.cache.Lesson(lessonID)
		if !ok {
			return domain.NotFoundError{Kind: domain.KindLesson, ID: lessonID}
		}
		idx := slices.Index(lesson.Attachments, key)
		if idx < 0 {
			return domain.NotFoundError{Kind: KindAttachment, ID: key}
		}
		lesson.Attachments = slices.Delete(lesson.Attachments, idx, idx+1)
		if err := s.commit(ctx, domain.Put(domain.TableLessons, lesson)); err != nil {
			return err
		}
		s.removeBlobs(ctx, []string{key})
		updated = lesson
		return nil
	}, zap.String("lesson_id", lessonID), zap.String("key", key))
	return updated, err
}

// OpenAttachment returns the stored bytes of an attachment. Callers close
// the reader.
func (s *Service) OpenAttachment(ctx context.Context, key string) (blob.Info, io.ReadCloser, error) {
	var (
		info blob.Info
		body io.ReadCloser
	)
	err := s.run(ctx, "open_attachment", func(ctx context.Context) error {
		if s.blobs == nil {
			return ErrNoBlobStore
		}
		var err error
		info, body, err = s.blobs.Get(ctx, key)
		if errors.Is(err, blob.ErrNotFound) {
			return domain.NotFoundError{Kind: KindAttachment, ID: key}
		}
		return err
	}, zap.String("key", key))
	if err != nil {
		return blob.Info{}, nil, err
	}
	return info, body, nil
}

// removeBlobs deletes keys after a committed change and returns how many
// were removed. Failures are logged, never returned.
func (s *Service) removeBlobs(ctx context.Context, keys []string) int {
	if s.blobs == nil || len(keys) == 0 {
		return 0
	}
	removed := 0
	for _, key := range keys {
		ok, err := s.blobs.Delete(ctx, key)
		if err != nil {
			s.logger.Warn("attachment cleanup failed", zap.String("key", key), zap.Error(err))
			continue
		}
		if ok {
			removed++
		}
	}
	return removed
}
