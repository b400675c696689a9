package seed

import (
	"github.com/noah-isme/dossier-messaging-api/internal/dto"
	"github.com/noah-isme/dossier-messaging-api/internal/models"
)

// DefaultDocument returns the built-in demo directory and conversations.
func DefaultDocument() Document {
	return Document{
		Users: DefaultDirectory(),
		Threads: []ThreadSeed{
			{
				DossierRef:   "DOS-2024-001",
				DossierTitle: "Pompe a chaleur - Famille Leroy",
				Participants: []string{"qual-marie", "conf-julien", "admin-sophie"},
				Messages: []MessageSeed{
					{SenderID: "qual-marie", Content: "Dossier qualifie, le client confirme la surface de 120 m2.", ReadBy: []string{"conf-julien"}},
					{SenderID: "conf-julien", Content: "Merci @Marie Dubois, rendez-vous fixe mardi."},
					{
						SenderID:   "qual-marie",
						Content:    "@Sophie Laurent les pieces sont jointes.",
						MentionIDs: []string{"admin-sophie"},
						Attachments: []dto.AttachmentRequest{
							{Name: "avis-imposition.pdf", Size: 184320, ContentType: "application/pdf"},
						},
					},
				},
			},
			{
				DossierRef:   "DOS-2024-002",
				DossierTitle: "Panneaux solaires - M. Garnier",
				Participants: []string{"vt-thomas", "inst-lucas", "fact-claire"},
				Messages: []MessageSeed{
					{
						SenderID:   "vt-thomas",
						Content:    "Visite technique faite, toiture conforme. @Lucas Bernard voir les photos.",
						MentionIDs: []string{"inst-lucas"},
						Attachments: []dto.AttachmentRequest{
							{Name: "toiture-sud.jpg", Size: 524288, ContentType: "image/jpeg"},
							{Name: "toiture-est.jpg", Size: 498112, ContentType: "image/jpeg"},
						},
						ReadBy: []string{"inst-lucas"},
					},
					{SenderID: "inst-lucas", Content: "Pose planifiee la semaine prochaine."},
				},
			},
			{
				DossierRef:   "DOS-2024-003",
				DossierTitle: "Isolation combles - Mme Petit",
				Participants: []string{"dir-nicolas", "support-emma"},
			},
		},
	}
}

// DefaultDirectory lists one or more users for every workflow service.
func DefaultDirectory() []models.User {
	return []models.User{
		{ID: "qual-marie", Name: "Marie Dubois", Email: "marie.dubois@example.com", Service: models.ServiceQualification, Role: "agent"},
		{ID: "conf-julien", Name: "Julien Martin", Email: "julien.martin@example.com", Service: models.ServiceConfirmation, Role: "agent"},
		{ID: "admin-sophie", Name: "Sophie Laurent", Email: "sophie.laurent@example.com", Service: models.ServiceAdministrative, Role: "manager"},
		{ID: "vt-thomas", Name: "Thomas Moreau", Email: "thomas.moreau@example.com", Service: models.ServiceTechnicalVisit, Role: "technician"},
		{ID: "inst-lucas", Name: "Lucas Bernard", Email: "lucas.bernard@example.com", Service: models.ServiceInstallation, Role: "technician"},
		{ID: "fact-claire", Name: "Claire Fontaine", Email: "claire.fontaine@example.com", Service: models.ServiceBilling, Role: "agent"},
		{ID: "dir-nicolas", Name: "Nicolas Roux", Email: "nicolas.roux@example.com", Service: models.ServiceDirection, Role: "director"},
		{ID: "support-emma", Name: "Emma Girard", Email: "emma.girard@example.com", Service: models.ServiceSupport, Role: "agent"},
	}
}
