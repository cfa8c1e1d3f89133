package cache

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/narwhalmedia/appupdater/internal/domain/update"
)

// md5BufferSize is the read buffer used when hashing artifacts.
const md5BufferSize = 8 * 1024

// Validator decides whether a cached artifact can be reused.
type Validator struct {
	reader update.PackageInfoReader
	host   update.HostIdentity
	logger *zap.Logger
}

// NewValidator creates a validator. reader and host are only consulted for
// version based validation and may be nil when only MD5 is used.
func NewValidator(reader update.PackageInfoReader, host update.HostIdentity, logger *zap.Logger) *Validator {
	return &Validator{
		reader: reader,
		host:   host,
		logger: logger.Named("cache-validator"),
	}
}

// Validate reports whether file satisfies cfg. An MD5 digest takes
// precedence over the version code. Failures to read the file are
// treated as a miss.
func (v *Validator) Validate(cfg *update.Config, file string) bool {
	info, err := os.Stat(file)
	if err != nil || info.IsDir() {
		return false
	}

	if cfg.HasMD5() {
		ok, err := VerifyMD5(file, cfg.MD5)
		if err != nil {
			v.logger.Warn("failed to hash cached file", zap.String("file", file), zap.Error(err))
			return false
		}
		v.logger.Debug("md5 validation",
			zap.String("file", file),
			zap.Bool("match", ok),
		)
		return ok
	}

	if cfg.HasVersionCode() {
		return v.validateVersion(cfg.VersionCode, file)
	}

	return false
}

func (v *Validator) validateVersion(versionCode int64, file string) bool {
	if v.reader == nil || v.host == nil {
		v.logger.Warn("version validation requested without package reader")
		return false
	}

	pkg, err := v.reader.ReadPackageInfo(file)
	if err != nil {
		v.logger.Warn("failed to read package info", zap.String("file", file), zap.Error(err))
		return false
	}

	ok := pkg.VersionCode == versionCode && pkg.PackageName == v.host.PackageName()
	v.logger.Debug("version validation",
		zap.String("file", file),
		zap.String("package", pkg.PackageName),
		zap.Int64("version_code", pkg.VersionCode),
		zap.Bool("match", ok),
	)
	return ok
}

// FileMD5 returns the lowercase hex MD5 digest of the file at path.
func FileMD5(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	hasher := md5.New()
	buf := make([]byte, md5BufferSize)
	for {
		n, err := file.Read(buf)
		if n > 0 {
			hasher.Write(buf[:n])
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to read file: %w", err)
		}
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// VerifyMD5 compares the file digest with expected, ignoring case.
func VerifyMD5(path, expected string) (bool, error) {
	actual, err := FileMD5(path)
	if err != nil {
		return false, err
	}
	return strings.EqualFold(actual, strings.TrimSpace(expected)), nil
}
