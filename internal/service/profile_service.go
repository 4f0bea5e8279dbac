package service

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	// 注册 JPEG 与 WebP 解码器
	_ "image/jpeg"

	_ "golang.org/x/image/webp"

	"github.com/google/uuid"
	"golang.org/x/image/draw"
	"gorm.io/gorm"
)

var (
	// ErrProfileInvalidInput 在资料字段不合法时返回
	ErrProfileInvalidInput = errors.New("invalid profile input")
	// ErrUnsupportedImage 表示上传的文件不是 PNG/JPEG/WebP
	ErrUnsupportedImage = errors.New("unsupported image format")
)

// ProfilePhotoSize 是头像缩略图的最大边长
const ProfilePhotoSize = 256

const maxPhotoBytes = 8 << 20

// ProfilePatch 是资料的部分更新，nil 字段保持不变
type ProfilePatch struct {
	Name       *string `json:"name"`
	Email      *string `json:"email"`
	Course     *string `json:"course"`
	Semester   *int    `json:"semester"`
	Section    *string `json:"section"`
	RollNumber *string `json:"rollNumber"`
}

// ProfileService 负责学生资料与头像
type ProfileService struct {
	db        *gorm.DB
	students  *StudentRepository
	uploadDir string
	uploadURL string
	now       func() time.Time
}

// NewProfileService 构造 ProfileService
func NewProfileService(gdb *gorm.DB, students *StudentRepository, uploadDir, uploadURL string) *ProfileService {
	if strings.TrimSpace(uploadDir) == "" {
		uploadDir = "uploads"
	}
	if strings.TrimSpace(uploadURL) == "" {
		uploadURL = "/uploads"
	}
	return &ProfileService{
		db:        gdb,
		students:  students,
		uploadDir: uploadDir,
		uploadURL: "/" + strings.Trim(uploadURL, "/"),
		now:       time.Now,
	}
}

// Get 返回学生资料
func (s *ProfileService) Get(code string) (*StudentProfile, error) {
	student, err := s.students.Resolve(code)
	if err != nil {
		return nil, err
	}
	profile := profileFromModel(*student)
	return &profile, nil
}

// Update 合并更新资料
func (s *ProfileService) Update(code string, patch ProfilePatch) (*StudentProfile, error) {
	student, err := s.students.Resolve(code)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name is required", ErrProfileInvalidInput)
		}
		student.Name = name
	}
	if patch.Email != nil {
		email := strings.TrimSpace(*patch.Email)
		if email != "" && !strings.Contains(email, "@") {
			return nil, fmt.Errorf("%w: email is invalid", ErrProfileInvalidInput)
		}
		student.Email = email
	}
	if patch.Course != nil {
		student.Course = strings.TrimSpace(*patch.Course)
	}
	if patch.Semester != nil {
		if *patch.Semester < 1 || *patch.Semester > 10 {
			return nil, fmt.Errorf("%w: semester must be between 1 and 10", ErrProfileInvalidInput)
		}
		student.Semester = *patch.Semester
	}
	if patch.Section != nil {
		student.Section = strings.TrimSpace(*patch.Section)
	}
	if patch.RollNumber != nil {
		student.RollNumber = strings.TrimSpace(*patch.RollNumber)
	}

	if err := s.db.Save(student).Error; err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	profile := profileFromModel(*student)
	return &profile, nil
}

// UploadPhoto 解码图片，等比缩放到 256x256 以内后以 PNG 保存，并把地址写回资料。
func (s *ProfileService) UploadPhoto(code string, r io.Reader) (*StudentProfile, error) {
	student, err := s.students.Resolve(code)
	if err != nil {
		return nil, err
	}

	src, _, err := image.Decode(io.LimitReader(r, maxPhotoBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}

	thumb := fitImage(src, ProfilePhotoSize)

	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	name := fmt.Sprintf("%s-%s.png", s.now().Format("20060102"), uuid.NewString())
	file, err := os.Create(filepath.Join(s.uploadDir, name))
	if err != nil {
		return nil, fmt.Errorf("create photo file: %w", err)
	}
	if err := png.Encode(file, thumb); err != nil {
		file.Close()
		return nil, fmt.Errorf("encode photo: %w", err)
	}
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("close photo file: %w", err)
	}

	student.PhotoURL = path.Join(s.uploadURL, name)
	if err := s.db.Model(student).Update("photo_url", student.PhotoURL).Error; err != nil {
		return nil, fmt.Errorf("save photo url: %w", err)
	}
	profile := profileFromModel(*student)
	return &profile, nil
}

// fitImage 等比缩放到 limit 以内，小图保持原尺寸。
func fitImage(src image.Image, limit int) image.Image {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= limit && h <= limit {
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.Draw(dst, dst.Bounds(), src, bounds.Min, draw.Src)
		return dst
	}

	tw, th := limit, limit
	if w > h {
		th = h * limit / w
	} else {
		tw = w * limit / h
	}
	if tw < 1 {
		tw = 1
	}
	if th < 1 {
		th = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, tw, th))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)
	return dst
}
