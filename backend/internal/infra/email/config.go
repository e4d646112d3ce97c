package email

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// SMTPConfig 描述 SMTP 邮件发送所需的环境配置。
type SMTPConfig struct {
	Host        string
	Port        int
	Username    string
	Password    string
	From        string
	SiteBaseURL string
}

// AliyunConfig 描述阿里云邮件推送（DirectMail）的必要配置。
type AliyunConfig struct {
	AccessKeyID     string
	AccessKeySecret string
	RegionID        string
	AccountName     string
	FromAlias       string
	TagName         string
	ReplyToAddress  bool
	Endpoint        string
	AddressType     int32
	SiteBaseURL     string
}

// LoadSMTPConfigFromEnv 从环境变量读取 SMTP 配置。
// 返回值：配置、是否启用、错误。
func LoadSMTPConfigFromEnv() (SMTPConfig, bool, error) {
	host := os.Getenv("SMTP_HOST")
	portStr := os.Getenv("SMTP_PORT")
	username := os.Getenv("SMTP_USERNAME")
	password := os.Getenv("SMTP_PASSWORD")
	from := os.Getenv("SMTP_FROM")

	if host == "" || portStr == "" || from == "" {
		return SMTPConfig{}, false, nil
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return SMTPConfig{}, false, fmt.Errorf("parse SMTP_PORT: %w", err)
	}

	return SMTPConfig{
		Host:        host,
		Port:        port,
		Username:    username,
		Password:    password,
		From:        from,
		SiteBaseURL: os.Getenv("APP_PUBLIC_BASE_URL"),
	}, true, nil
}

// LoadAliyunConfigFromEnv 从环境变量读取阿里云邮件推送配置。
// 返回值：配置、是否启用、错误。
func LoadAliyunConfigFromEnv() (AliyunConfig, bool, error) {
	accessKey := strings.TrimSpace(os.Getenv("ALIYUN_DM_ACCESS_KEY_ID"))
	secret := strings.TrimSpace(os.Getenv("ALIYUN_DM_ACCESS_KEY_SECRET"))
	region := strings.TrimSpace(os.Getenv("ALIYUN_DM_REGION_ID"))
	accountName := strings.TrimSpace(os.Getenv("ALIYUN_DM_ACCOUNT_NAME"))

	if accessKey == "" || secret == "" || region == "" || accountName == "" {
		return AliyunConfig{}, false, nil
	}

	endpoint := strings.TrimSpace(os.Getenv("ALIYUN_DM_ENDPOINT"))
	if endpoint == "" {
		endpoint = "dm.aliyuncs.com"
	}

	replyToAddress := true
	if replyStr := strings.TrimSpace(os.Getenv("ALIYUN_DM_REPLY_TO_ADDRESS")); replyStr != "" {
		parsed, err := strconv.ParseBool(replyStr)
		if err != nil {
			return AliyunConfig{}, false, fmt.Errorf("parse ALIYUN_DM_REPLY_TO_ADDRESS: %w", err)
		}
		replyToAddress = parsed
	}

	addressType := int32(1)
	if addressTypeStr := strings.TrimSpace(os.Getenv("ALIYUN_DM_ADDRESS_TYPE")); addressTypeStr != "" {
		parsed, err := strconv.Atoi(addressTypeStr)
		if err != nil {
			return AliyunConfig{}, false, fmt.Errorf("parse ALIYUN_DM_ADDRESS_TYPE: %w", err)
		}
		addressType = int32(parsed)
	}

	return AliyunConfig{
		AccessKeyID:     accessKey,
		AccessKeySecret: secret,
		RegionID:        region,
		AccountName:     accountName,
		FromAlias:       strings.TrimSpace(os.Getenv("ALIYUN_DM_FROM_ALIAS")),
		TagName:         strings.TrimSpace(os.Getenv("ALIYUN_DM_TAG_NAME")),
		ReplyToAddress:  replyToAddress,
		Endpoint:        endpoint,
		AddressType:     addressType,
		SiteBaseURL:     os.Getenv("APP_PUBLIC_BASE_URL"),
	}, true, nil
}
