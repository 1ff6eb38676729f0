package blob

import "aida/internal/config"

func configS3(bucket, region string) config.S3Config {
	return config.S3Config{
		Bucket:          bucket,
		Region:          region,
		Endpoint:        "fsn1.your-objectstorage.com",
		AccessKeyID:     "key",
		SecretAccessKey: "secret",
		PathStyle:       true,
	}
}
