package person

import (
	"fmt"
	"io"
	"net/mail"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/kasolo/mafunzo/core"
)

var (
	ErrFileTooBig      = errors.New("file exceeds the maximum allowed size")
	ErrFileTypeBlocked = errors.New("file type is not allowed")
)

// SaveUpload stores an uploaded document under the person's own directory
// with a random name; the original filename only survives in the record.
func (svc *Service) SaveUpload(p Person, originalName, contentType string, size int64, src io.Reader) (File, error) {
	ext := strings.ToLower(filepath.Ext(originalName))
	if !svc.extAllowed(ext) {
		return File{}, core.NewValidationError(ErrFileTypeBlocked, core.FieldError{Field: "files", Error: ErrFileTypeBlocked.Error()})
	}
	if size > svc.conf.Upload.MaxSize {
		return File{}, core.NewValidationError(ErrFileTooBig, core.FieldError{Field: "files", Error: ErrFileTooBig.Error()})
	}

	dir := svc.uploadDir(p.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return File{}, errors.Wrap(err, "creating upload dir")
	}

	name := uuid.NewString() + ext
	dst, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return File{}, errors.Wrap(err, "creating upload file")
	}
	defer dst.Close()

	written, err := io.Copy(dst, io.LimitReader(src, svc.conf.Upload.MaxSize+1))
	if err != nil {
		return File{}, errors.Wrap(err, "writing upload file")
	}
	if written > svc.conf.Upload.MaxSize {
		os.Remove(dst.Name())
		return File{}, core.NewValidationError(ErrFileTooBig, core.FieldError{Field: "files", Error: ErrFileTooBig.Error()})
	}

	f := File{
		PersonID:     p.ID,
		Filename:     name,
		OriginalName: originalName,
		Size:         written,
		ContentType:  contentType,
		CreatedAt:    time.Now().UTC(),
	}
	return svc.repo.CreateFile(f)
}

func (svc *Service) extAllowed(ext string) bool {
	ext = strings.TrimPrefix(ext, ".")
	for _, allowed := range svc.conf.Upload.AllowedExts {
		if ext == allowed {
			return true
		}
	}
	return false
}

func (svc *Service) Files(personID int) ([]File, error) {
	return svc.repo.QueryFiles(personID)
}

func (svc *Service) GetFile(id int) (File, error) {
	return svc.repo.GetFileByID(id)
}

// FilePath resolves where a stored file lives on disk.
func (svc *Service) FilePath(f File) string {
	return filepath.Join(svc.uploadDir(f.PersonID), f.Filename)
}

func (svc *Service) uploadDir(personID int) string {
	return filepath.Join(svc.conf.Upload.Dir, strconv.Itoa(personID))
}

func (svc *Service) removeUploadDir(personID int) {
	if err := os.RemoveAll(svc.uploadDir(personID)); err != nil {
		svc.logger.Warn("removing upload dir: "+err.Error(), err)
	}
}

// NotifyUploads tells the admin which documents a person just uploaded.
func (svc *Service) NotifyUploads(p Person, files []File) error {
	if len(files) == 0 {
		return nil
	}
	crs, err := svc.courses.GetCourseByID(p.CourseID)
	if err != nil {
		return err
	}

	infos := make([]core.UploadedFileInfo, len(files))
	for i, f := range files {
		infos[i] = core.UploadedFileInfo{Name: f.OriginalName, Size: FormatFileSize(f.Size)}
	}
	msg := &core.EmailMessage{
		To:           []mail.Address{{Address: svc.conf.AdminEmail}},
		TemplateName: core.TmplFileUploadNotice,
		TemplateData: core.FileUploadNoticeData{
			FirstName:  p.FirstName,
			LastName:   p.LastName,
			Email:      p.Email,
			Role:       p.Role,
			CourseName: crs.Name,
			Files:      infos,
		},
	}
	return svc.mailSvc.SendMessage(msg)
}

// FormatFileSize renders a byte count for humans, e.g. "1.2 MB".
func FormatFileSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
