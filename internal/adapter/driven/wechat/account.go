package wechat

import (
	"context"

	"github.com/iniwap/AIWriteX/internal/domain/model"
)

type accountBasicInfo struct {
	WxVerifyInfo struct {
		QualificationVerify bool `json:"qualification_verify"`
	} `json:"wx_verify_info"`
}

// FetchVerificationTier queries the account's basic info. The result is not
// cached; callers fetch it once per publish run.
func (c *Client) FetchVerificationTier(ctx context.Context) (model.VerificationTier, error) {
	var info accountBasicInfo
	if err := c.getJSON(ctx, "get_account_basic_info", "account/getaccountbasicinfo", &info); err != nil {
		return model.TierUnverified, err
	}
	if info.WxVerifyInfo.QualificationVerify {
		return model.TierVerified, nil
	}
	return model.TierUnverified, nil
}
