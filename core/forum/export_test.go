package forum

import "time"

func (svc *Service) SetNow(now func() time.Time) { svc.now = now }

func (svc *Service) ImageKey(userID string, img Image) string { return svc.imageKey(userID, img) }
