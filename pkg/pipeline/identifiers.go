package pipeline

import (
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

var (
	identifierPart = `(?:[A-Za-z_][A-Za-z0-9_$]*|"[^"]+")`
	tableNameRegex = regexp.MustCompile(`^` + identifierPart + `(?:\.` + identifierPart + `)?$`)

	// https://docs.aws.amazon.com/AmazonS3/latest/userguide/bucketnamingrules.html
	bucketNameRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)
	regionRegex     = regexp.MustCompile(`^[a-z]{2}(-[a-z]+)+-\d$`)
)

// ValidateTableName accepts `table` or `schema.table`, each part either a bare identifier or a
// double-quoted one. Anything else could change the meaning of the generated SQL.
func ValidateTableName(name string) error {
	if !tableNameRegex.MatchString(name) {
		return errors.Errorf("invalid table name '%s', expected 'table' or 'schema.table'", name)
	}

	return nil
}

func ValidateBucketName(bucket string) error {
	if !bucketNameRegex.MatchString(bucket) || strings.Contains(bucket, "..") {
		return errors.Errorf("invalid S3 bucket name '%s'", bucket)
	}

	return nil
}

func ValidatePrefix(prefix string) error {
	if strings.TrimSpace(prefix) == "" {
		return errors.New("S3 prefix cannot be empty")
	}

	if strings.ContainsAny(prefix, "';\n\r") {
		return errors.Errorf("invalid S3 prefix '%s', quotes, semicolons and newlines are not allowed", prefix)
	}

	return nil
}

// ValidateCopyOptions rejects option strings that would terminate the COPY statement early.
// Quotes are allowed since format options such as JSON 's3://bucket/jsonpaths.json' need them.
func ValidateCopyOptions(options string) error {
	if strings.Contains(options, ";") {
		return errors.Errorf("copy options cannot contain ';': %s", options)
	}

	if strings.Count(options, "'")%2 != 0 {
		return errors.Errorf("copy options contain an unbalanced quote: %s", options)
	}

	return nil
}

func ValidateRegion(region string) error {
	if region == "" {
		return nil
	}

	if !regionRegex.MatchString(region) {
		return errors.Errorf("invalid AWS region '%s'", region)
	}

	return nil
}
