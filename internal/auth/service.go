package auth

import (
	"time"

	"github.com/google/uuid"
	"github.com/mileusna/useragent"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/riveredge/platform/internal/apperror"
	"github.com/riveredge/platform/internal/model"
	"github.com/riveredge/platform/pkg/database"
	"github.com/riveredge/platform/pkg/jwtutil"
	"github.com/riveredge/platform/pkg/logger"
	"github.com/riveredge/platform/pkg/metrics"
)

// LoginRequest is the credential payload. TenantID disambiguates when the
// same username exists in more than one tenant.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	TenantID *uint  `json:"tenant_id,omitempty"`
}

// TenantOption is one selectable tenant returned when login needs
// disambiguation.
type TenantOption struct {
	ID   uint   `json:"id"`
	UUID string `json:"uuid"`
	Name string `json:"name"`
}

// LoginResult is the outcome of a login attempt. When RequiresTenantSelection
// is set no token is issued and Tenants lists the choices.
type LoginResult struct {
	Token                   string         `json:"token,omitempty"`
	ExpiresIn               int            `json:"expires_in,omitempty"`
	User                    *model.User    `json:"user,omitempty"`
	Tenant                  *model.Tenant  `json:"tenant,omitempty"`
	RequiresTenantSelection bool           `json:"requires_tenant_selection"`
	Tenants                 []TenantOption `json:"tenants,omitempty"`
}

// ClientMeta carries request metadata recorded in the login audit log.
type ClientMeta struct {
	IP        string
	UserAgent string
}

// Login authenticates a username/password pair. Resolution order:
// platform admin first (username unique among admins), then the tenant
// named in the request, then enumeration across tenants. When the username
// exists in several tenants and none was selected, the caller gets the
// tenant list back instead of a token.
func Login(req *LoginRequest, meta ClientMeta) (*LoginResult, error) {
	db := database.GetDB()
	log := logger.GetLogger()
	metrics.LoginCounter.Inc()

	if req.Username == "" || req.Password == "" {
		return nil, apperror.Validation("username and password are required")
	}

	// Platform admins have no tenant and take precedence over tenant users
	// with the same username.
	var admin model.User
	err := db.Where("username = ? AND tenant_id IS NULL AND is_platform_admin = ?", req.Username, true).
		First(&admin).Error
	if err == nil {
		return loginAs(&admin, nil, req.Password, meta)
	}

	if req.TenantID != nil {
		var user model.User
		if err := db.Where("username = ? AND tenant_id = ?", req.Username, *req.TenantID).
			First(&user).Error; err != nil {
			metrics.RecordAuthError("user_not_found")
			recordLoginLog(nil, nil, req.Username, "failed", "user not found", meta)
			return nil, apperror.Auth("invalid username or password")
		}
		tn, err := activeTenant(db, *req.TenantID)
		if err != nil {
			recordLoginLog(req.TenantID, &user.ID, req.Username, "failed", "tenant unavailable", meta)
			return nil, err
		}
		return loginAs(&user, tn, req.Password, meta)
	}

	// No tenant selected: enumerate candidates across active tenants.
	var users []model.User
	if err := db.Where("username = ? AND tenant_id IS NOT NULL", req.Username).
		Find(&users).Error; err != nil || len(users) == 0 {
		metrics.RecordAuthError("user_not_found")
		recordLoginLog(nil, nil, req.Username, "failed", "user not found", meta)
		return nil, apperror.Auth("invalid username or password")
	}

	options := make([]TenantOption, 0, len(users))
	var candidates []model.User
	for _, u := range users {
		tn, err := activeTenant(db, *u.TenantID)
		if err != nil {
			continue
		}
		options = append(options, TenantOption{ID: tn.ID, UUID: tn.UUID, Name: tn.Name})
		candidates = append(candidates, u)
	}

	switch len(candidates) {
	case 0:
		metrics.RecordAuthError("tenant_unavailable")
		recordLoginLog(nil, nil, req.Username, "failed", "no active tenant", meta)
		return nil, apperror.AccessDenied("no active tenant for this account")
	case 1:
		tn, err := activeTenant(db, *candidates[0].TenantID)
		if err != nil {
			return nil, err
		}
		return loginAs(&candidates[0], tn, req.Password, meta)
	default:
		log.Info("Login requires tenant selection",
			zap.String("username", req.Username),
			zap.Int("tenant_count", len(options)))
		return &LoginResult{RequiresTenantSelection: true, Tenants: options}, nil
	}
}

func loginAs(user *model.User, tn *model.Tenant, password string, meta ClientMeta) (*LoginResult, error) {
	if !VerifyPassword(user.PasswordHash, password) {
		metrics.RecordAuthError("invalid_password")
		recordLoginLog(user.TenantID, &user.ID, user.Username, "failed", "invalid password", meta)
		return nil, apperror.Auth("invalid username or password")
	}
	if !user.IsActive {
		metrics.RecordAuthError("user_disabled")
		recordLoginLog(user.TenantID, &user.ID, user.Username, "failed", "user disabled", meta)
		return nil, apperror.AccessDenied("account is disabled")
	}

	token, err := jwtutil.GenerateToken(user.ID, user.Username, user.TenantID, user.IsPlatformAdmin, user.IsTenantAdmin)
	if err != nil {
		return nil, apperror.External("failed to generate token", err)
	}

	recordLoginLog(user.TenantID, &user.ID, user.Username, "success", "", meta)

	return &LoginResult{
		Token:     token,
		ExpiresIn: jwtutil.ExpiresIn(),
		User:      user,
		Tenant:    tn,
	}, nil
}

func activeTenant(db *gorm.DB, id uint) (*model.Tenant, error) {
	var tn model.Tenant
	if err := db.First(&tn, id).Error; err != nil {
		return nil, apperror.NotFound("tenant not found")
	}
	if tn.Status != model.TenantStatusActive {
		return nil, apperror.AccessDenied("tenant is not active")
	}
	if tn.ExpiresAt != nil && tn.ExpiresAt.Before(time.Now()) {
		return nil, apperror.AccessDenied("tenant subscription has expired")
	}
	return &tn, nil
}

// Refresh issues a new token for an already-authenticated user, re-reading
// the user row so revoked or disabled accounts stop refreshing.
func Refresh(claims *jwtutil.UserClaims) (*LoginResult, error) {
	db := database.GetDB()

	if claims.IsGuest {
		return nil, apperror.AccessDenied("guest tokens cannot be refreshed")
	}

	var user model.User
	if err := db.First(&user, claims.UserID).Error; err != nil {
		return nil, apperror.Auth("account no longer exists")
	}
	if !user.IsActive {
		return nil, apperror.AccessDenied("account is disabled")
	}

	token, err := jwtutil.GenerateToken(user.ID, user.Username, user.TenantID, user.IsPlatformAdmin, user.IsTenantAdmin)
	if err != nil {
		return nil, apperror.External("failed to generate token", err)
	}
	return &LoginResult{Token: token, ExpiresIn: jwtutil.ExpiresIn(), User: &user}, nil
}

// GuestLogin issues a short-lived read-only token bound to the tenant, for
// public-facing pages that render tenant data without an account.
func GuestLogin(tenantID uint) (*LoginResult, error) {
	db := database.GetDB()

	tn, err := activeTenant(db, tenantID)
	if err != nil {
		return nil, err
	}

	token, err := jwtutil.GenerateGuestToken(&tn.ID)
	if err != nil {
		return nil, apperror.External("failed to generate token", err)
	}
	return &LoginResult{Token: token, ExpiresIn: jwtutil.ExpiresIn(), Tenant: tn}, nil
}

// RegisterRequest creates a tenant and its first admin user in one step.
// Personal signups get a generated tenant name; organizations supply one
// plus an optional domain.
type RegisterRequest struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	Email      string `json:"email"`
	FullName   string `json:"full_name"`
	TenantName string `json:"tenant_name"`
	Domain     string `json:"domain"`
}

// Register provisions a new tenant with the requester as tenant admin.
func Register(req *RegisterRequest) (*LoginResult, error) {
	db := database.GetDB()
	log := logger.GetLogger()

	if req.Username == "" || req.Password == "" {
		return nil, apperror.Validation("username and password are required")
	}
	if len(req.Password) < 8 {
		return nil, apperror.Validation("password must be at least 8 characters")
	}

	tenantName := req.TenantName
	if tenantName == "" {
		tenantName = req.Username + "'s workspace"
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, apperror.External("failed to hash password", err)
	}

	var tn model.Tenant
	var user model.User
	err = db.Transaction(func(tx *gorm.DB) error {
		if req.Domain != "" {
			var count int64
			tx.Model(&model.Tenant{}).Where("domain = ?", req.Domain).Count(&count)
			if count > 0 {
				return apperror.BusinessLogic("domain is already registered")
			}
		}

		tn = model.Tenant{
			UUID:   uuid.New().String(),
			Name:   tenantName,
			Domain: req.Domain,
			Status: model.TenantStatusActive,
		}
		if err := tx.Create(&tn).Error; err != nil {
			return apperror.External("failed to create tenant", err)
		}

		user = model.User{
			UUID:          uuid.New().String(),
			TenantID:      &tn.ID,
			Username:      req.Username,
			Email:         req.Email,
			FullName:      req.FullName,
			PasswordHash:  hash,
			IsActive:      true,
			IsTenantAdmin: true,
		}
		if err := tx.Create(&user).Error; err != nil {
			return apperror.BusinessLogic("username is already taken in this tenant")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info("Tenant registered",
		zap.String("tenant_uuid", tn.UUID),
		zap.String("username", user.Username))

	token, err := jwtutil.GenerateToken(user.ID, user.Username, user.TenantID, false, true)
	if err != nil {
		return nil, apperror.External("failed to generate token", err)
	}
	return &LoginResult{Token: token, ExpiresIn: jwtutil.ExpiresIn(), User: &user, Tenant: &tn}, nil
}

// recordLoginLog writes the audit row in the background so logging can
// never slow down or fail a login.
func recordLoginLog(tenantID, userID *uint, username, status, reason string, meta ClientMeta) {
	entry := model.LoginLog{
		TenantID:      tenantID,
		UserID:        userID,
		Username:      username,
		LoginStatus:   status,
		FailureReason: reason,
		IP:            meta.IP,
		UserAgent:     meta.UserAgent,
	}
	if meta.UserAgent != "" {
		ua := useragent.Parse(meta.UserAgent)
		entry.Browser = ua.Name
		entry.OS = ua.OS
		entry.Device = ua.Device
	}

	go func() {
		if err := database.GetDB().Create(&entry).Error; err != nil {
			logger.GetLogger().Warn("Failed to record login log", zap.Error(err))
		}
	}()
}
