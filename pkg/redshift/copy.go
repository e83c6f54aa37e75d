package redshift

import (
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/pkg/errors"
	"github.com/sparkify/sparkify-etl/pkg/pipeline"
)

// PlaceholderCredentials are used when rendering COPY statements for humans.
var PlaceholderCredentials = aws.Credentials{
	AccessKeyID:     "<aws_access_key_id>",
	SecretAccessKey: "<aws_secret_access_key>",
}

func credentialsClause(creds aws.Credentials) (string, error) {
	if creds.AccessKeyID == "" || creds.SecretAccessKey == "" {
		return "", errors.New("AWS credentials are missing an access key or a secret key")
	}

	parts := []string{
		"aws_access_key_id=" + creds.AccessKeyID,
		"aws_secret_access_key=" + creds.SecretAccessKey,
	}
	if creds.SessionToken != "" {
		parts = append(parts, "token="+creds.SessionToken)
	}

	clause := strings.Join(parts, ";")
	if strings.ContainsAny(clause, "'\n") {
		return "", errors.New("AWS credentials contain characters that cannot be used in a COPY statement")
	}

	return clause, nil
}

// BuildCopyStatement renders the COPY statement that loads every object under the stage source into its table:
//
//	COPY <table> FROM 's3://<bucket>/<prefix>' WITH CREDENTIALS '<credentials>' [REGION '<region>'] <options>;
func BuildCopyStatement(stage *pipeline.Stage, creds aws.Credentials) (string, error) {
	if err := stage.Validate(); err != nil {
		return "", err
	}

	clause, err := credentialsClause(creds)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("COPY ")
	b.WriteString(stage.Table)
	b.WriteString(" FROM '")
	b.WriteString(stage.SourceURI())
	b.WriteString("' WITH CREDENTIALS '")
	b.WriteString(clause)
	b.WriteString("'")

	if stage.Region != "" {
		b.WriteString(" REGION '")
		b.WriteString(stage.Region)
		b.WriteString("'")
	}

	if options := strings.TrimSpace(stage.CopyOptions); options != "" {
		b.WriteString(" ")
		b.WriteString(options)
	}

	b.WriteString(";")
	return b.String(), nil
}
