// Package application содержит доменную модель заявки студента на обучение за
// рубежом и правила её рассмотрения.
//
// Пакет определяет:
//
//   - Сущность Application и встроенные записи Documents/Document
//   - Конечный автомат StateMachine с проверками переходов
//   - Политику назначения агента (IsEntitled, CanInitialReview)
//   - Вариант Caller: StudentCaller, AgentCaller, AdminCaller
//   - Интерфейсы Repository и FileStore
//
// # Жизненный цикл
//
//	draft → submitted → accepted → approved
//	           │            │
//	           └→ rejected ←┘
//	rejected → submitted (повторная отправка после правок)
//
// Первичное рассмотрение (InitialReview) доступно любому агенту или
// администратору и назначает вызывающего ответственным агентом. Загрузка
// документов открыта только в статусе accepted. Финальное одобрение требует,
// чтобы все обязательные документы (WorkflowConfig.RequiredDocuments) были
// одобрены.
//
// # Инварианты
//
//  1. RejectionFeedback непуст тогда и только тогда, когда Status == rejected
//  2. У студента не больше одной заявки
//  3. Статус документа становится submitted только через загрузку, а
//     approved/rejected_for_revision - только через проверку агентом
//
// # Конкурентный доступ
//
// Автомат работает с копией заявки в памяти. Сохранение выполняется через
// Repository.Update с ожидаемой версией; проигравший гонку получает Conflict
// и должен перечитать заявку.
//
//	app, _ := repo.GetByID(ctx, id)
//	expected := app.Version
//	if err := sm.InitialReview(caller, app, DecisionAccept, ""); err != nil {
//	    return err
//	}
//	return repo.Update(ctx, app, expected)
package application
