package protocol

// These are the TransformId values carried in SaTransform.TransformId
// (RFC 2409 Appendix A for Oakley/Phase-1, RFC 2407 Section 4.4.2/4.5
// for IPsec/Phase-2); the attribute payload (ENCRYPTION_ALGORITHM,
// AUTHENTICATION_ALGORITHM, GROUP_DESCRIPTION, ...) narrows which of
// these apply to a given proposal.

// OakleyEncrId is the Phase-1 ENCRYPTION_ALGORITHM attribute value.
type OakleyEncrId uint16

const (
	OAKLEY_DES_CBC      OakleyEncrId = 1
	OAKLEY_IDEA_CBC     OakleyEncrId = 2
	OAKLEY_BLOWFISH_CBC OakleyEncrId = 3
	OAKLEY_RC5_R16_B64  OakleyEncrId = 4
	OAKLEY_3DES_CBC     OakleyEncrId = 5
	OAKLEY_CAST_CBC     OakleyEncrId = 6
	OAKLEY_AES_CBC      OakleyEncrId = 7
	OAKLEY_CAMELLIA_CBC OakleyEncrId = 8
)

// OakleyHashId is the Phase-1 HASH_ALGORITHM attribute value.
type OakleyHashId uint16

const (
	OAKLEY_MD5       OakleyHashId = 1
	OAKLEY_SHA       OakleyHashId = 2
	OAKLEY_TIGER     OakleyHashId = 3
	OAKLEY_SHA2_256  OakleyHashId = 4
	OAKLEY_SHA2_384  OakleyHashId = 5
	OAKLEY_SHA2_512  OakleyHashId = 6
)

// OakleyGroupId is the Phase-1 GROUP_DESCRIPTION attribute value.
type OakleyGroupId uint16

const (
	OAKLEY_GROUP_MODP_768  OakleyGroupId = 1
	OAKLEY_GROUP_MODP_1024 OakleyGroupId = 2
	OAKLEY_GROUP_MODP_1536 OakleyGroupId = 5
	OAKLEY_GROUP_MODP_2048 OakleyGroupId = 14
)

// IpsecAuthId is the Phase-2 AUTHENTICATION_ALGORITHM attribute value.
type IpsecAuthId uint16

const (
	IPSEC_AUTH_HMAC_MD5      IpsecAuthId = 1
	IPSEC_AUTH_HMAC_SHA      IpsecAuthId = 2
	IPSEC_AUTH_DES_MAC       IpsecAuthId = 3
	IPSEC_AUTH_KPDK          IpsecAuthId = 4
	IPSEC_AUTH_HMAC_SHA2_256 IpsecAuthId = 5
	IPSEC_AUTH_HMAC_SHA2_384 IpsecAuthId = 6
	IPSEC_AUTH_HMAC_SHA2_512 IpsecAuthId = 7
)

// EspTransformId is the ESP proposal's TransformId field (RFC 2407
// Section 4.4.2), selecting the ESP cipher itself.
type EspTransformId uint8

const (
	ESP_DES_IV64 EspTransformId = 1
	ESP_DES      EspTransformId = 2
	ESP_3DES     EspTransformId = 3
	ESP_NULL     EspTransformId = 11
	ESP_AES      EspTransformId = 12
	ESP_CAMELLIA EspTransformId = 13
)
