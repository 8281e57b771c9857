package infra

import (
	"context"
	"fmt"

	kms "cloud.google.com/go/kms/apiv1"
	kmspb "cloud.google.com/go/kms/apiv1/kmspb"

	"virology-test-service/config"
	"virology-test-service/internal/domain"
)

// KMSClient はCloud KMSの非対称署名クライアントをラップする。
// 鍵はEC P-256 / SHA-256の署名用キーバージョンを指す。
type KMSClient struct {
	client  *kms.KeyManagementClient
	keyName string
	keyID   string
}

// NewKMSClient は設定から鍵名と公開キーIDを取得してKMSClientを生成する。
func NewKMSClient(ctx context.Context, cfg *config.Config) (*KMSClient, error) {
	if cfg.KMSKeyName == "" {
		return nil, fmt.Errorf("KMS_KEY_NAME environment variable is required")
	}
	if cfg.SignatureKeyID == "" {
		return nil, fmt.Errorf("SIGNATURE_KEY_ID environment variable is required")
	}

	client, err := kms.NewKeyManagementClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating KMS client: %w", err)
	}

	return &KMSClient{
		client:  client,
		keyName: cfg.KMSKeyName,
		keyID:   cfg.SignatureKeyID,
	}, nil
}

// Sign はSHA-256ダイジェストに対する署名をCloud KMSで生成する。
func (c *KMSClient) Sign(ctx context.Context, digest []byte) (domain.Signature, error) {
	req := &kmspb.AsymmetricSignRequest{
		Name: c.keyName,
		Digest: &kmspb.Digest{
			Digest: &kmspb.Digest_Sha256{Sha256: digest},
		},
	}
	resp, err := c.client.AsymmetricSign(ctx, req)
	if err != nil {
		return domain.Signature{}, fmt.Errorf("signing: %w", err)
	}
	return domain.Signature{
		KeyID:     c.keyID,
		Algorithm: domain.SignatureAlgorithmECDSASHA256,
		Bytes:     resp.Signature,
	}, nil
}

// Close はKMSクライアントを閉じる。
func (c *KMSClient) Close() error {
	return c.client.Close()
}
