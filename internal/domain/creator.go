package domain

// CreatorProfile is the social identity linked to a creator address.
type CreatorProfile struct {
	FID               int64    `json:"fid"`
	Username          string   `json:"username"`
	DisplayName       string   `json:"displayName"`
	PfpURL            string   `json:"pfpUrl"`
	FollowerCount     int64    `json:"followerCount"`
	VerifiedAddresses []string `json:"verifiedAddresses"`
	TokenCount        int      `json:"tokenCount"`
	Rating            int      `json:"rating"` // 0-100
	RatingLabel       string   `json:"ratingLabel"`
}
